package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHash(t *testing.T) {
	t.Run("should be stable for the same record", func(t *testing.T) {
		assert.Equal(t, CalculateHash([]string{"AO1", "WO1"}), CalculateHash([]string{"AO1", "WO1"}))
	})

	t.Run("should distinguish cell boundaries", func(t *testing.T) {
		assert.NotEqual(t, CalculateHash([]string{"a,b", "c"}), CalculateHash([]string{"a", "b,c"}))
	})
}

func TestBytesChecksum(t *testing.T) {
	content := []byte("order_id,workorder\nAO1,WO1\n")

	sum := BytesChecksum(content)

	assert.Len(t, sum, 16)
	assert.Equal(t, sum, BytesChecksum(content))
	assert.NotEqual(t, sum, BytesChecksum([]byte("order_id,workorder\nAO1,WO2\n")))
}
