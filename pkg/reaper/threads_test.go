package reaper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerSplit(t *testing.T) {
	tests := []struct {
		name        string
		prefixCount int
		maxThreads  int
		wantList    int
		wantDelete  int
	}{
		{
			name:        "no prefixes spawns nothing",
			prefixCount: 0,
			maxThreads:  100,
			wantList:    0,
			wantDelete:  0,
		},
		{
			name:        "one prefix",
			prefixCount: 1,
			maxThreads:  100,
			wantList:    1,
			wantDelete:  2,
		},
		{
			name:        "three prefixes under ceiling",
			prefixCount: 3,
			maxThreads:  100,
			wantList:    3,
			wantDelete:  6,
		},
		{
			name:        "ten prefixes with tight ceiling reclamps",
			prefixCount: 10,
			maxThreads:  6,
			wantList:    2,
			wantDelete:  4,
		},
		{
			name:        "exactly at ceiling keeps natural split",
			prefixCount: 33,
			maxThreads:  99,
			wantList:    33,
			wantDelete:  66,
		},
		{
			name:        "one over ceiling reclamps",
			prefixCount: 34,
			maxThreads:  100,
			wantList:    33,
			wantDelete:  67,
		},
		{
			name:        "minimum ceiling keeps one lister",
			prefixCount: 50,
			maxThreads:  3,
			wantList:    1,
			wantDelete:  2,
		},
		{
			name:        "ceiling not divisible by three",
			prefixCount: 100,
			maxThreads:  10,
			wantList:    3,
			wantDelete:  7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, del := workerSplit(tt.prefixCount, tt.maxThreads)
			assert.Equal(t, tt.wantList, list, "list workers")
			assert.Equal(t, tt.wantDelete, del, "delete workers")
		})
	}
}
