package scheduler

import (
	"context"
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"marketplace/autoposter/internal/domain"
)

// QueueCreator is the store operation batch generation needs.
type QueueCreator interface {
	CreateQueueRecord(ctx context.Context, workflowID int64, payload domain.ListingPayload) (int64, error)
}

// GenerateBatch derives one pending queue record per image set from a
// workflow template, picking a random description variant for each so the
// generated listings do not read identically.
func GenerateBatch(ctx context.Context, store QueueCreator, wf domain.Workflow, imageSets [][]string) ([]int64, error) {
	if len(imageSets) == 0 {
		return nil, fmt.Errorf("no image sets supplied for workflow %q", wf.Name)
	}

	ids := make([]int64, 0, len(imageSets))
	for _, images := range imageSets {
		payload := domain.ListingPayload{
			Title:          wf.Title,
			Description:    pickDescription(wf.Descriptions),
			Price:          wf.Price,
			Category:       wf.Category,
			Condition:      wf.Condition,
			Location:       wf.Location,
			DeliveryMethod: wf.DeliveryMethod,
			Images:         images,
			Groups:         wf.Groups,
			Boost:          wf.Boost,
		}
		if err := payload.Validate(); err != nil {
			return ids, fmt.Errorf("workflow %q produced an invalid listing: %w", wf.Name, err)
		}
		id, err := store.CreateQueueRecord(ctx, wf.ID, payload)
		if err != nil {
			return ids, fmt.Errorf("failed to enqueue listing from workflow %q: %w", wf.Name, err)
		}
		ids = append(ids, id)
	}

	log.Infof("generated %d listing(s) from workflow %q", len(ids), wf.Name)
	return ids, nil
}

func pickDescription(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	return variants[rand.Intn(len(variants))]
}
