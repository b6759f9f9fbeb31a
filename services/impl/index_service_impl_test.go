package impl

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/models"
)

func pendingComponent(orgID uuid.UUID, name string, age time.Duration) models.Component {
	id := models.NewComponentID()
	return models.Component{
		ID:              id,
		OrgID:           orgID,
		Slug:            models.SlugFor(name, models.FrameworkReact, id),
		Name:            name,
		Framework:       models.FrameworkReact,
		EmbeddingStatus: models.EmbeddingStatusPending,
		UpdatedAt:       time.Now().Add(-age),
	}
}

func TestInterleaveFair(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	t.Run("one candidate per org caps the batch", func(t *testing.T) {
		// maxPerOrg=1 leaves one candidate per org regardless of backlog.
		candidates := []models.Component{
			pendingComponent(orgA, "Accordion", 3*time.Hour),
			pendingComponent(orgB, "Button", 2*time.Hour),
		}
		out := interleaveFair(candidates, 10)
		require.Len(t, out, 2)
		seen := map[uuid.UUID]int{}
		for _, c := range out {
			seen[c.OrgID]++
		}
		assert.Equal(t, 1, seen[orgA])
		assert.Equal(t, 1, seen[orgB])
	})

	t.Run("rounds alternate across orgs oldest first", func(t *testing.T) {
		a1 := pendingComponent(orgA, "Accordion", 3*time.Hour)
		a2 := pendingComponent(orgA, "Alert", 1*time.Hour)
		b1 := pendingComponent(orgB, "Button", 2*time.Hour)

		out := interleaveFair([]models.Component{a1, a2, b1}, 10)
		require.Len(t, out, 3)
		assert.Equal(t, a1.ID, out[0].ID, "longest-waiting org leads")
		assert.Equal(t, b1.ID, out[1].ID)
		assert.Equal(t, a2.ID, out[2].ID, "second round returns to the first org")
	})

	t.Run("limit cuts inside a round", func(t *testing.T) {
		a1 := pendingComponent(orgA, "Accordion", 3*time.Hour)
		a2 := pendingComponent(orgA, "Alert", 1*time.Hour)
		b1 := pendingComponent(orgB, "Button", 2*time.Hour)

		out := interleaveFair([]models.Component{a1, a2, b1}, 2)
		require.Len(t, out, 2)
		assert.Equal(t, a1.ID, out[0].ID)
		assert.Equal(t, b1.ID, out[1].ID)
	})

	t.Run("org whose oldest row waited longest goes first", func(t *testing.T) {
		a1 := pendingComponent(orgA, "Accordion", 1*time.Hour)
		b1 := pendingComponent(orgB, "Button", 5*time.Hour)

		out := interleaveFair([]models.Component{a1, b1}, 10)
		require.Len(t, out, 2)
		assert.Equal(t, b1.ID, out[0].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, interleaveFair(nil, 10))
		assert.Empty(t, interleaveFair([]models.Component{pendingComponent(orgA, "X", time.Hour)}, 0))
	})
}
