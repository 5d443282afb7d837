package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	productID := uuid.New()
	userID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventProductDeleted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Actor:         &ActorRef{UserID: userID},
			Data:          payloads.ProductLifecycleEvent{ProductID: productID, Deleted: true},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	err = conn.Transaction(func(tx *gorm.DB) error {
		var fetchErr error
		rows, fetchErr = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return fetchErr
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, productID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, userID, envelope.Actor.UserID)
}

func TestEmitRejectsMissingTxAndUnknownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventProductSaved})
	assert.Error(t, err)

	conn := dbtest.Open(t)
	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "bogus", AggregateID: uuid.New()})
	})
	assert.Error(t, err)
}

func TestMarkFailedAndTerminal(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	row := models.OutboxEvent{
		EventType:     enums.EventProductSaved,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
	}
	require.NoError(t, repo.Insert(conn, row))

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored).Error)

	require.NoError(t, repo.MarkFailedTx(conn, stored.ID, errors.New("publish timeout")))
	require.NoError(t, conn.First(&stored, "id = ?", stored.ID).Error)
	assert.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "publish timeout", *stored.LastError)

	msg := "gave up"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       stored.ID,
		EventType:     stored.EventType,
		AggregateType: stored.AggregateType,
		AggregateID:   stored.AggregateID,
		Payload:       stored.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))
	require.NoError(t, repo.MarkTerminalTx(conn, stored.ID, errors.New("gave up"), 3))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, repo.MarkPublishedTx(conn, stored.ID))
	require.NoError(t, conn.First(&stored, "id = ?", stored.ID).Error)
	assert.NotNil(t, stored.PublishedAt)

	var dlqCount int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&dlqCount).Error)
	assert.Equal(t, int64(1), dlqCount)
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventProductSaved,
			AggregateType: enums.AggregateProduct,
		})
	})
	assert.ErrorContains(t, err, "no aggregate id")

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:   enums.EventProductSaved,
			AggregateID: uuid.New(),
		})
	})
	assert.ErrorContains(t, err, "aggregate type")
}

func TestParseEnvelopeChecksVersionAndData(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"version":2,"eventId":"e","data":{}}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = ParseEnvelope([]byte(`{"version":1,"eventId":"e","data":null}`))
	assert.ErrorIs(t, err, ErrMissingData)

	envelope, err := ParseEnvelope([]byte(`{"version":1,"eventId":"e","data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "e", envelope.EventID)
}

func TestDLQInsertRejectsUnknownReason(t *testing.T) {
	conn := dbtest.Open(t)
	err := NewDLQRepository(conn).InsertTx(conn, models.OutboxDLQ{ErrorReason: "gave_up"})
	assert.Error(t, err)
}
