package pointers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointers(t *testing.T) {
	assert.Equal(t, 5, *To(5))
	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, "x", SafeString(To("x")))
	assert.Equal(t, uuid.Nil, UUIDOrNil(nil))

	assert.Nil(t, NonEmpty(nil))
	assert.Nil(t, NonEmpty(To("  ")))
	assert.Equal(t, "a b", *NonEmpty(To(" a b ")))

	assert.Nil(t, Day(nil))
	d := Day(To(time.Date(2024, 3, 5, 23, 10, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *d)
}
