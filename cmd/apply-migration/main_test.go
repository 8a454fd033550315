package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	content := `-- header
CREATE TABLE a (id INT);

-- 同一排程最多一个
CREATE UNIQUE INDEX ux ON a (id)
    WHERE id IS NULL;
`
	got := splitStatements(content)
	assert.Equal(t, []string{
		"CREATE TABLE a (id INT)",
		"CREATE UNIQUE INDEX ux ON a (id)\n    WHERE id IS NULL",
	}, got)
}
