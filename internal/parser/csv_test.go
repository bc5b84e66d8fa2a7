package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

func TestParse(t *testing.T) {
	t.Run("should parse a simple table", func(t *testing.T) {
		table, err := Parse("a,b\n1,2\n3,4")

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Headers)
		assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, table.Rows)
	})

	t.Run("should honor quotes, escaped quotes and embedded commas", func(t *testing.T) {
		table, err := Parse("name,address\n\"Budi, S.\",\"Jl. \"\"Merdeka\"\" 1\"\n")

		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Budi, S.", "Jl. \"Merdeka\" 1"}}, table.Rows)
	})

	t.Run("should keep an unterminated quote inside its own line", func(t *testing.T) {
		table, err := Parse("a,b\n\"x,1\n2,3\n4,5")

		require.NoError(t, err)
		assert.Equal(t, [][]string{{"x,1", ""}, {"2", "3"}, {"4", "5"}}, table.Rows)
	})

	t.Run("should truncate long rows and pad short ones", func(t *testing.T) {
		table, err := Parse("h1,h2\nX,,Y\nonly\n")

		require.NoError(t, err)
		assert.Equal(t, [][]string{{"X", ""}, {"only", ""}}, table.Rows)
	})

	t.Run("should skip blank lines and rows that are empty after trimming", func(t *testing.T) {
		table, err := Parse("\n\n  \nh1,h2\n\n , \n1,2\r\n")

		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h2"}, table.Headers)
		assert.Equal(t, [][]string{{"1", "2"}}, table.Rows)
	})

	t.Run("should trim header cells", func(t *testing.T) {
		table, err := Parse(" Date Created , Status Bima \n")

		require.NoError(t, err)
		assert.Equal(t, []string{"Date Created", "Status Bima"}, table.Headers)
		assert.Empty(t, table.Rows)
	})

	t.Run("should accept a header with no data rows", func(t *testing.T) {
		table, err := Parse("order_id,workorder\n")

		require.NoError(t, err)
		assert.Equal(t, 0, table.RowCount())
		assert.Equal(t, 2, table.ColumnCount())
	})

	t.Run("should fail on empty input", func(t *testing.T) {
		_, err := Parse(" \n\n")

		var parseErr *models.ParseError
		assert.True(t, errors.As(err, &parseErr))
		assert.ErrorIs(t, err, models.ErrNoContent)
	})

	t.Run("should fail when the header has no columns", func(t *testing.T) {
		_, err := Parse(",,\n1,2,3\n")

		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Contains(t, parseErr.Error(), "no columns")
		assert.ErrorIs(t, err, models.ErrNoHeaders)
	})
}

func TestParse_RowWidthInvariant(t *testing.T) {
	var b strings.Builder
	b.WriteString("c1,c2,c3,c4\n")
	for i := 0; i < 50; i++ {
		cells := make([]string, i%7+1)
		for j := range cells {
			cells[j] = fmt.Sprintf("v%d", j)
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}

	table, err := Parse(b.String())

	require.NoError(t, err)
	assert.Len(t, table.Rows, 50)
	for _, row := range table.Rows {
		assert.Len(t, row, 4)
	}
}

func TestParseChunked(t *testing.T) {
	t.Run("should report progress per chunk", func(t *testing.T) {
		text := "a,b\n1,2\n3,4\n5,6\n7,8\n9,10\n"
		var events []models.Progress

		table, err := ParseChunked(context.Background(), text, 2, func(p models.Progress) {
			events = append(events, p)
		})

		require.NoError(t, err)
		assert.Len(t, table.Rows, 5)
		require.Len(t, events, 3)
		assert.Equal(t, 3, events[0].TotalChunks)
		assert.Equal(t, 1, events[0].CurrentChunk)
		assert.Equal(t, 2, events[0].RowsProcessed)
		assert.Equal(t, 5, events[2].RowsProcessed)
		assert.Equal(t, int64(len(text)), events[2].BytesProcessed)
		assert.Less(t, events[0].BytesProcessed, events[1].BytesProcessed)
	})

	t.Run("should stop between chunks when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		_, err := ParseChunked(ctx, "a\n1\n2\n3\n4\n", 1, func(p models.Progress) {
			calls++
			cancel()
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestSplitLine(t *testing.T) {
	assert.Equal(t, []string{"a", "b,c", "d\"e"}, SplitLine(`a,"b,c","d""e"`))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("order_id,workorder\nAO1,WO1\n")...), 0o600))

	table, err := ParseFile(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "workorder"}, table.Headers)
	assert.Equal(t, [][]string{{"AO1", "WO1"}}, table.Rows)
}
