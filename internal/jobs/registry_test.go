package jobs

import (
	"errors"
	"testing"
)

func TestRegistryCreateAndGet(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	job := registry.Create(KindCrawl)

	if job.ID == "" || job.Kind != KindCrawl || job.Status != StatusStarting {
		t.Errorf("created job = %+v", job)
	}

	got := registry.Get(job.ID)
	if got == nil || got.ID != job.ID {
		t.Fatalf("Get = %+v, want the created job", got)
	}

	if registry.Get("no-such-id") != nil {
		t.Error("Get returned a job for an unknown id")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	job := registry.Create(KindSync)

	got := registry.Get(job.ID)
	got.Status = "mangled"

	if registry.Get(job.ID).Status != StatusStarting {
		t.Error("mutating a Get result leaked into the registry")
	}
}

func TestRegistryCompleteAndFail(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	done := registry.Create(KindCrawl)
	registry.Complete(done.ID, map[string]int{"files": 3})

	got := registry.Get(done.ID)
	if got.Status != StatusComplete || got.Result == nil || got.CompletedAt == nil {
		t.Errorf("completed job = %+v", got)
	}

	broken := registry.Create(KindSync)
	registry.Fail(broken.ID, errors.New("remote exploded"))

	got = registry.Get(broken.ID)
	if got.Status != StatusError || got.Error != "remote exploded" || got.CompletedAt == nil {
		t.Errorf("failed job = %+v", got)
	}
}

func TestWriterSlot(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	holder, ok := registry.AcquireWriter("crawl-1")
	if !ok || holder != "crawl-1" {
		t.Fatalf("first acquire = (%s, %v)", holder, ok)
	}

	holder, ok = registry.AcquireWriter("sync-1")
	if ok {
		t.Fatal("second acquire succeeded while the slot was held")
	}

	if holder != "crawl-1" {
		t.Errorf("busy acquire reported holder %q, want crawl-1", holder)
	}

	// Only the holder can release.
	registry.ReleaseWriter("sync-1")

	if _, ok := registry.AcquireWriter("sync-1"); ok {
		t.Fatal("non-holder release freed the slot")
	}

	registry.ReleaseWriter("crawl-1")

	if _, ok := registry.AcquireWriter("sync-1"); !ok {
		t.Error("slot still busy after the holder released")
	}
}
