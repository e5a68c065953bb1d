package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingpanda/pingpanda/internal/model"
)

func fieldsFromJSON(t *testing.T, s string) model.Fields {
	t.Helper()
	var f model.Fields
	require.NoError(t, json.Unmarshal([]byte(s), &f))
	return f
}

func TestIngest_Accepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "u1", 100)
	cat := env.category(t, "u1", "sale")

	e, err := env.events.Ingest(ctx, "u1", IngestEventInput{
		Category: "Sale",
		Fields:   fieldsFromJSON(t, `{"plan":"PRO","amount":49.99,"first":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusPending, e.DeliveryStatus)
	assert.Equal(t, cat.ID, e.CategoryID)
	assert.Equal(t, []string{"plan", "amount", "first"}, e.Fields.Keys())
	assert.Equal(t, testNow, e.CreatedAt)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, e.ID, env.notifier.sent[0].EventID)
	assert.Equal(t, "#ffeb3b", env.notifier.sent[0].Color)

	u, err := env.store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.QuotaUsed)
	assert.Equal(t, uint64(1), env.metrics.Snapshot().EventsIngested["accepted"])
}

func TestIngest_UnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "u1", 100)
	env.category(t, "u2", "sale")

	_, err := env.events.Ingest(context.Background(), "u1", IngestEventInput{Category: "sale"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.notifier.sent)
}

func TestIngest_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "u1", 2)
	env.category(t, "u1", "sale")

	for i := 0; i < 2; i++ {
		_, err := env.events.Ingest(ctx, "u1", IngestEventInput{Category: "sale"})
		require.NoError(t, err)
	}
	_, err := env.events.Ingest(ctx, "u1", IngestEventInput{Category: "sale"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	n, err := env.store.CountEvents(ctx, filterAll(env, "u1", "sale"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, env.notifier.sent, 2)
}

func TestIngest_FieldLimits(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "u1", 100)
	env.category(t, "u1", "sale")

	var many strings.Builder
	many.WriteString("{")
	for i := 0; i <= MaxFieldCount; i++ {
		if i > 0 {
			many.WriteString(",")
		}
		fmt.Fprintf(&many, `"k%d":%d`, i, i)
	}
	many.WriteString("}")

	tests := []struct {
		name   string
		fields string
		key    string
	}{
		{"too many keys", many.String(), "fields"},
		{"long key", `{"` + strings.Repeat("k", MaxFieldKeyLength+1) + `":1}`, "fields." + strings.Repeat("k", MaxFieldKeyLength+1)},
		{"blank key", `{" ":1}`, "fields. "},
		{"long string", `{"note":"` + strings.Repeat("x", MaxFieldStringLen+1) + `"}`, "fields.note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.events.Ingest(context.Background(), "u1", IngestEventInput{
				Category: "sale",
				Fields:   fieldsFromJSON(t, tt.fields),
			})
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tt.key)
		})
	}
	assert.Empty(t, env.notifier.sent)
}

func TestIngest_MissingCategory(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.events.Ingest(context.Background(), "u1", IngestEventInput{})
	assert.ErrorIs(t, err, ErrValidation)
}
