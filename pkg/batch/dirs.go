package batch

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/menta2k/border-trim/pkg/storage"
)

// dirCreator creates output directories at most once per run. Concurrent
// requests for the same path share a single creation attempt.
type dirCreator struct {
	store   storage.Store
	group   singleflight.Group
	created sync.Map
}

func newDirCreator(store storage.Store) *dirCreator {
	return &dirCreator{store: store}
}

// ensure creates dir if needed. Failures are not remembered so a later call retries.
func (d *dirCreator) ensure(dir string) error {
	if _, ok := d.created.Load(dir); ok {
		return nil
	}
	_, err, _ := d.group.Do(dir, func() (interface{}, error) {
		if _, ok := d.created.Load(dir); ok {
			return nil, nil
		}
		if err := d.store.EnsureDir(dir); err != nil {
			return nil, err
		}
		d.created.Store(dir, struct{}{})
		return nil, nil
	})
	if err != nil {
		return &DirectoryCreateError{Path: dir, Err: err}
	}
	return nil
}
