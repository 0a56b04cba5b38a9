package redis

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/askstream/internal/domain"
)

func TestSetResult_RejectsNonTerminalStatus(t *testing.T) {
	// Rejection happens before any command is issued, so no client is
	// needed.
	s := &HashStatusStore{logger: slog.Default()}

	for _, status := range []domain.TaskStatus{
		domain.TaskStatusQueued,
		domain.TaskStatusProcessing,
		domain.TaskStatus("leased"),
	} {
		t.Run(string(status), func(t *testing.T) {
			err := s.SetResult(context.Background(), uuid.New(), status, "answer")
			assert.ErrorIs(t, err, domain.ErrInvalidStatus)
		})
	}
}

func TestStatusKey(t *testing.T) {
	taskID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "task:11111111-1111-1111-1111-111111111111", statusKey(taskID))
}
