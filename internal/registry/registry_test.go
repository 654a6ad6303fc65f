package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemory_RecordKeepsOrderAndDuplicates(t *testing.T) {
	r := NewInMemory()

	r.Record("kb", "a.pdf")
	r.Record("kb", "b.pdf")
	r.Record("kb", "a.pdf")

	assert.Equal(t, []string{"a.pdf", "b.pdf", "a.pdf"}, r.Files("kb"))
	assert.Empty(t, r.Files("other"))
}

func TestInMemory_FilesReturnsCopy(t *testing.T) {
	r := NewInMemory()
	r.Record("kb", "a.pdf")

	files := r.Files("kb")
	files[0] = "mutated"

	assert.Equal(t, []string{"a.pdf"}, r.Files("kb"))
}

func TestInMemory_Forget(t *testing.T) {
	r := NewInMemory()
	r.Record("kb", "a.pdf")
	r.Record("keep", "b.pdf")

	r.Forget("kb")

	assert.Empty(t, r.Files("kb"))
	assert.Equal(t, []string{"b.pdf"}, r.Files("keep"))
}

func TestInMemory_InstancesAreIsolated(t *testing.T) {
	a := NewInMemory()
	b := NewInMemory()

	a.Record("kb", "a.pdf")

	assert.Empty(t, b.Files("kb"))
}

func TestInMemory_ConcurrentRecord(t *testing.T) {
	r := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Record("kb", fmt.Sprintf("file-%d.pdf", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Files("kb"), 50)
}
