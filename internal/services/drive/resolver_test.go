package drive

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

// fakeFolderStore is an in-memory Drive folder tree. createDelay widens the
// find-then-create race window so concurrent creation is actually exercised.
type fakeFolderStore struct {
	mu          sync.Mutex
	nextID      int
	folders     map[string]File            // id -> folder
	children    map[string]map[string]bool // parentID -> child ids
	findCalls   int
	createCalls int
	deleted     []string
	createDelay time.Duration
	clock       time.Time
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{
		folders:  make(map[string]File),
		children: make(map[string]map[string]bool),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeFolderStore) FindFolders(ctx context.Context, parentID, name string) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	var matches []File
	for id := range s.children[parentID] {
		if f := s.folders[id]; f.Name == name {
			matches = append(matches, f)
		}
	}
	return matches, nil
}

func (s *fakeFolderStore) CreateFolder(ctx context.Context, parentID, name string) (*File, error) {
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	f := File{
		ID:          fmt.Sprintf("folder-%03d", s.nextID),
		Name:        name,
		MimeType:    folderMimeType,
		CreatedTime: s.clock,
	}
	s.folders[f.ID] = f
	if s.children[parentID] == nil {
		s.children[parentID] = make(map[string]bool)
	}
	s.children[parentID][f.ID] = true
	return &f, nil
}

func (s *fakeFolderStore) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[fileID]; !ok {
		return &APIError{StatusCode: 404, Message: "not found"}
	}
	delete(s.folders, fileID)
	for _, kids := range s.children {
		delete(kids, fileID)
	}
	s.deleted = append(s.deleted, fileID)
	return nil
}

func newTestResolver(store FolderStore) *Resolver {
	return NewResolver(store, "root", arbor.NewLogger()).(*Resolver)
}

func TestResolveCreatesMissingSegments(t *testing.T) {
	ctx := context.Background()
	store := newFakeFolderStore()
	resolver := newTestResolver(store)

	id, err := resolver.Resolve(ctx, "Dealers/Arctic Air")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id == "" || id == "root" {
		t.Fatalf("unexpected folder ID %q", id)
	}
	if store.createCalls != 2 {
		t.Errorf("create calls = %d, want 2 (Dealers and Arctic Air)", store.createCalls)
	}

	// Second resolution finds the existing tree
	again, err := resolver.Resolve(ctx, "Dealers/Arctic Air")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again != id {
		t.Errorf("second resolution = %q, want %q", again, id)
	}
	if store.createCalls != 2 {
		t.Errorf("create calls after re-resolve = %d, want still 2", store.createCalls)
	}
}

func TestResolveRootAndEmptyPath(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(newFakeFolderStore())

	for _, path := range []string{"", "/", "//"} {
		id, err := resolver.Resolve(ctx, path)
		if err != nil {
			t.Fatalf("resolve %q: %v", path, err)
		}
		if id != "root" {
			t.Errorf("resolve %q = %q, want root", path, id)
		}
	}
}

func TestResolveConcurrentSamePathSingleFolder(t *testing.T) {
	ctx := context.Background()
	store := newFakeFolderStore()
	resolver := newTestResolver(store)

	const goroutines = 16
	ids := make([]string, goroutines)
	errs := make([]error, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids[n], errs[n] = resolver.Resolve(ctx, "Dealers/Arctic Air")
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("goroutine %d resolved %q, goroutine 0 resolved %q", i, ids[i], ids[0])
		}
	}

	// In-flight dedup collapses all 16 calls onto one creation per segment
	if store.createCalls != 2 {
		t.Errorf("create calls = %d, want 2", store.createCalls)
	}
}

func TestResolveCrossProcessRaceKeepsOldest(t *testing.T) {
	ctx := context.Background()
	store := newFakeFolderStore()
	store.createDelay = 10 * time.Millisecond

	// Two resolver instances model two processes: the keyed wait map cannot
	// help across them, so both go through create-then-requery
	r1 := newTestResolver(store)
	r2 := newTestResolver(store)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i, r := range []*Resolver{r1, r2} {
		wg.Add(1)
		go func(n int, resolver *Resolver) {
			defer wg.Done()
			ids[n], errs[n] = resolver.Resolve(ctx, "Dealers")
		}(i, r)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("resolve errors: %v, %v", errs[0], errs[1])
	}
	if ids[0] != ids[1] {
		t.Fatalf("processes disagree: %q vs %q", ids[0], ids[1])
	}

	// Regardless of interleaving, at most one Dealers folder survives
	folders, err := store.FindFolders(ctx, "root", "Dealers")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("surviving folders = %d, want 1", len(folders))
	}
	if folders[0].ID != ids[0] {
		t.Errorf("survivor %q does not match resolved ID %q", folders[0].ID, ids[0])
	}
}

func TestOldestFolderDeterministic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		folders []File
		want    string
	}{
		{
			name: "earliest created wins",
			folders: []File{
				{ID: "b", CreatedTime: t0.Add(time.Minute)},
				{ID: "a", CreatedTime: t0},
			},
			want: "a",
		},
		{
			name: "tie broken by id",
			folders: []File{
				{ID: "z", CreatedTime: t0},
				{ID: "a", CreatedTime: t0},
			},
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := oldestFolder(tt.folders); got.ID != tt.want {
				t.Errorf("oldestFolder = %q, want %q", got.ID, tt.want)
			}
		})
	}
}
