package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditRecordValidation(t *testing.T) {
	logger := NewAuditLogger(nil)

	// Every field the table requires must be present before anything is
	// written.
	cases := map[string]AuditLog{
		"missing action":    {Entity: "orders", EntityID: "1"},
		"missing entity":    {Action: "system_reset", EntityID: "1"},
		"missing entity id": {Action: "system_reset", Entity: "orders"},
	}
	for name, log := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, logger.Record(context.Background(), log))
		})
	}

	var missing *AuditLogger
	assert.Error(t, missing.Record(context.Background(), AuditLog{
		Action: "system_reset", Entity: "orders", EntityID: "1",
	}))
}
