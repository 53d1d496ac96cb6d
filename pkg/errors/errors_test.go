package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestCodeOfClassifiesWrappedErrors(t *testing.T) {
	nf := NotFound("Miembro no encontrado")
	wrapped := fmt.Errorf("get member: %w", nf)

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestMetadataFallsBackToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("UNKNOWN").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, MetadataFor(CodeValidation).HTTPStatus)
	assert.Equal(t, http.StatusNotFound, MetadataFor(CodeNotFound).HTTPStatus)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeInternal, cause, "list members")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "list members", err.Message())
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	err := fmt.Errorf("insert achievement: %w", &pq.Error{
		Code:       "23503",
		Constraint: "fame_achievements_member_id_fkey",
		Table:      "fame_achievements",
		Message:    "violates foreign key",
	})

	d := Dump(err)
	assert.Equal(t, "23503", d.PGCode)
	assert.Equal(t, "fame_achievements", d.PGTable)
	assert.Equal(t, "fame_achievements_member_id_fkey", d.PGConstraint)
	assert.Len(t, d.Chain, 2)
	assert.Equal(t, CodeInternal, d.Code)
}
