// Package memory provides an in-memory implementation of the metadata store
// used for tests and ephemeral environments. Transactions operate on a deep
// copy of the state and swap it in atomically on success, so a failed
// transaction leaves the store untouched.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"lineagecore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.MetadataStore = (*Store)(nil)
	_ domain.JobStore      = (*Store)(nil)
)

type roleSet map[domain.ConnectionType]map[string]struct{}

type state struct {
	bundles map[string]domain.BundleVersion // fqid -> row
	files   map[string]domain.FileVersion   // fqid -> row

	bundleFiles map[string]map[string]string // bundle fqid -> file fqid -> member name
	fileBundles map[string]map[string]struct{}

	processes map[string]struct{}
	procFiles map[string]roleSet // process uuid -> role -> file uuids
	fileProcs map[string]roleSet // file uuid -> role -> process uuids

	children map[string]map[string]struct{} // parent -> child set
	parents  map[string]map[string]struct{} // child -> parent set

	schemaTypes map[string]time.Time

	latestBundles map[string]domain.BundleVersion // uuid -> newest row
	latestFiles   map[string]domain.FileVersion

	jobs map[string]domain.AsyncQueryJob
}

func newState() *state {
	return &state{
		bundles:       make(map[string]domain.BundleVersion),
		files:         make(map[string]domain.FileVersion),
		bundleFiles:   make(map[string]map[string]string),
		fileBundles:   make(map[string]map[string]struct{}),
		processes:     make(map[string]struct{}),
		procFiles:     make(map[string]roleSet),
		fileProcs:     make(map[string]roleSet),
		children:      make(map[string]map[string]struct{}),
		parents:       make(map[string]map[string]struct{}),
		schemaTypes:   make(map[string]time.Time),
		latestBundles: make(map[string]domain.BundleVersion),
		latestFiles:   make(map[string]domain.FileVersion),
		jobs:          make(map[string]domain.AsyncQueryJob),
	}
}

func cloneStringSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func cloneRoleSet(in roleSet) roleSet {
	out := make(roleSet, len(in))
	for role, set := range in {
		out[role] = cloneStringSet(set)
	}
	return out
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.bundles {
		out.bundles[k] = v
	}
	for k, v := range s.files {
		out.files[k] = v
	}
	for b, members := range s.bundleFiles {
		m := make(map[string]string, len(members))
		for f, name := range members {
			m[f] = name
		}
		out.bundleFiles[b] = m
	}
	for f, set := range s.fileBundles {
		out.fileBundles[f] = cloneStringSet(set)
	}
	for p := range s.processes {
		out.processes[p] = struct{}{}
	}
	for p, rs := range s.procFiles {
		out.procFiles[p] = cloneRoleSet(rs)
	}
	for f, rs := range s.fileProcs {
		out.fileProcs[f] = cloneRoleSet(rs)
	}
	for p, set := range s.children {
		out.children[p] = cloneStringSet(set)
	}
	for c, set := range s.parents {
		out.parents[c] = cloneStringSet(set)
	}
	for n, t := range s.schemaTypes {
		out.schemaTypes[n] = t
	}
	for k, v := range s.latestBundles {
		out.latestBundles[k] = v
	}
	for k, v := range s.latestFiles {
		out.latestFiles[k] = v
	}
	for k, v := range s.jobs {
		out.jobs[k] = v
	}
	return out
}

// Store is the in-memory metadata and job store.
type Store struct {
	mu    sync.RWMutex
	state *state
	nowFn func() time.Time
	idFn  func() string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newState(), nowFn: func() time.Time { return time.Now().UTC() }, idFn: newID}
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// SetIDFunc overrides job id generation, for tests.
func (s *Store) SetIDFunc(fn func() string) { s.idFn = fn }

// RunInTransaction applies fn against a copy of the state and commits the
// copy only when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.state.clone()
	if err := fn(&tx{state: working, now: s.nowFn}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}

// tx mutates a cloned state; it is single-goroutine by construction.
type tx struct {
	state *state
	now   func() time.Time
}

var _ domain.Tx = (*tx)(nil)

func (t *tx) PutBundle(b domain.BundleVersion) (bool, error) {
	fqid := b.FQID()
	if existing, ok := t.state.bundles[fqid]; ok {
		if !sameJSON(existing, b) {
			return false, domain.ErrConflict{Entity: domain.EntityBundle, ID: fqid}
		}
		return false, nil
	}
	t.state.bundles[fqid] = b
	return true, nil
}

func (t *tx) PutFile(f domain.FileVersion) (bool, error) {
	fqid := f.FQID()
	if existing, ok := t.state.files[fqid]; ok {
		if !sameJSON(existing, f) {
			return false, domain.ErrConflict{Entity: domain.EntityFile, ID: fqid}
		}
		return false, nil
	}
	t.state.files[fqid] = f
	return true, nil
}

func (t *tx) DeleteBundles(fqids []string) error {
	for _, fqid := range fqids {
		delete(t.state.bundles, fqid)
	}
	return nil
}

func (t *tx) DeleteFiles(fqids []string) error {
	for _, fqid := range fqids {
		delete(t.state.files, fqid)
	}
	return nil
}

func (t *tx) RegisterSchemaType(name string) (bool, error) {
	if _, ok := t.state.schemaTypes[name]; ok {
		return false, nil
	}
	t.state.schemaTypes[name] = t.now()
	return true, nil
}

func (t *tx) LinkBundleFile(bundleFQID, fileFQID, name string) error {
	members, ok := t.state.bundleFiles[bundleFQID]
	if !ok {
		members = make(map[string]string)
		t.state.bundleFiles[bundleFQID] = members
	}
	if _, dup := members[fileFQID]; dup {
		return nil
	}
	members[fileFQID] = name
	owners, ok := t.state.fileBundles[fileFQID]
	if !ok {
		owners = make(map[string]struct{})
		t.state.fileBundles[fileFQID] = owners
	}
	owners[bundleFQID] = struct{}{}
	return nil
}

func (t *tx) LinkProcessFile(processUUID, fileUUID string, role domain.ConnectionType) error {
	t.state.processes[processUUID] = struct{}{}
	forward, ok := t.state.procFiles[processUUID]
	if !ok {
		forward = make(roleSet)
		t.state.procFiles[processUUID] = forward
	}
	if forward[role] == nil {
		forward[role] = make(map[string]struct{})
	}
	forward[role][fileUUID] = struct{}{}

	reverse, ok := t.state.fileProcs[fileUUID]
	if !ok {
		reverse = make(roleSet)
		t.state.fileProcs[fileUUID] = reverse
	}
	if reverse[role] == nil {
		reverse[role] = make(map[string]struct{})
	}
	reverse[role][processUUID] = struct{}{}
	return nil
}

func (t *tx) RecordProcessEdge(parentUUID, childUUID string) error {
	if parentUUID == childUUID {
		return nil
	}
	if t.state.children[parentUUID] == nil {
		t.state.children[parentUUID] = make(map[string]struct{})
	}
	t.state.children[parentUUID][childUUID] = struct{}{}
	if t.state.parents[childUUID] == nil {
		t.state.parents[childUUID] = make(map[string]struct{})
	}
	t.state.parents[childUUID][parentUUID] = struct{}{}
	return nil
}

func (t *tx) UnlinkBundle(bundleFQID string) ([]string, error) {
	members := t.state.bundleFiles[bundleFQID]
	fqids := make([]string, 0, len(members))
	for fileFQID := range members {
		fqids = append(fqids, fileFQID)
		if owners := t.state.fileBundles[fileFQID]; owners != nil {
			delete(owners, bundleFQID)
			if len(owners) == 0 {
				delete(t.state.fileBundles, fileFQID)
			}
		}
	}
	delete(t.state.bundleFiles, bundleFQID)
	sort.Strings(fqids)
	return fqids, nil
}

func (t *tx) FilesForBundles(bundleFQIDs []string) ([]domain.BundleFileLink, error) {
	return filesForBundles(t.state, bundleFQIDs), nil
}

func (t *tx) BundlesForFiles(fileFQIDs []string) ([]domain.BundleFileLink, error) {
	return bundlesForFiles(t.state, fileFQIDs), nil
}

func (t *tx) ProcessesForFiles(fileUUIDs []string, role domain.ConnectionType) ([]string, error) {
	return processesForFiles(t.state, fileUUIDs, role), nil
}

func filesForBundles(st *state, bundleFQIDs []string) []domain.BundleFileLink {
	var links []domain.BundleFileLink
	for _, bundleFQID := range bundleFQIDs {
		for fileFQID, name := range st.bundleFiles[bundleFQID] {
			links = append(links, domain.BundleFileLink{BundleFQID: bundleFQID, FileFQID: fileFQID, Name: name})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].BundleFQID != links[j].BundleFQID {
			return links[i].BundleFQID < links[j].BundleFQID
		}
		return links[i].FileFQID < links[j].FileFQID
	})
	return links
}

func bundlesForFiles(st *state, fileFQIDs []string) []domain.BundleFileLink {
	var links []domain.BundleFileLink
	for _, fileFQID := range fileFQIDs {
		for bundleFQID := range st.fileBundles[fileFQID] {
			links = append(links, domain.BundleFileLink{
				BundleFQID: bundleFQID,
				FileFQID:   fileFQID,
				Name:       st.bundleFiles[bundleFQID][fileFQID],
			})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].FileFQID != links[j].FileFQID {
			return links[i].FileFQID < links[j].FileFQID
		}
		return links[i].BundleFQID < links[j].BundleFQID
	})
	return links
}

func processesForFiles(st *state, fileUUIDs []string, role domain.ConnectionType) []string {
	seen := make(map[string]struct{})
	for _, fileUUID := range fileUUIDs {
		for processUUID := range st.fileProcs[fileUUID][role] {
			seen[processUUID] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetBundle returns the bundle version for the fqid, if present.
func (s *Store) GetBundle(ctx context.Context, fqid string) (domain.BundleVersion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.bundles[fqid]
	return b, ok, nil
}

// GetFile returns the file version for the fqid, if present.
func (s *Store) GetFile(ctx context.Context, fqid string) (domain.FileVersion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.files[fqid]
	return f, ok, nil
}

// FilesForBundles returns membership links for the given bundle fqids.
func (s *Store) FilesForBundles(ctx context.Context, bundleFQIDs []string) ([]domain.BundleFileLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filesForBundles(s.state, bundleFQIDs), nil
}

// BundlesForFiles returns membership links for the given file fqids.
func (s *Store) BundlesForFiles(ctx context.Context, fileFQIDs []string) ([]domain.BundleFileLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bundlesForFiles(s.state, fileFQIDs), nil
}

// ProcessesForFile returns processes linked to the file uuid, optionally
// filtered by connection type.
func (s *Store) ProcessesForFile(ctx context.Context, fileUUID string, role *domain.ConnectionType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for r, procs := range s.state.fileProcs[fileUUID] {
		if role != nil && r != *role {
			continue
		}
		for p := range procs {
			seen[p] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// DirectParents returns the immediate parents of the process.
func (s *Store) DirectParents(ctx context.Context, processUUID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.state.parents[processUUID]), nil
}

// DirectChildren returns the immediate children of the process.
func (s *Store) DirectChildren(ctx context.Context, processUUID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.state.children[processUUID]), nil
}

// Ancestors returns the transitive closure over parent edges, excluding the
// starting process.
func (s *Store) Ancestors(ctx context.Context, processUUID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return traverse(s.state.parents, processUUID), nil
}

// Descendants returns the transitive closure over child edges, excluding the
// starting process.
func (s *Store) Descendants(ctx context.Context, processUUID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return traverse(s.state.children, processUUID), nil
}

// traverse walks the adjacency breadth-first. The visited set doubles as the
// cycle guard for malformed edge data.
func traverse(adjacency map[string]map[string]struct{}, start string) []string {
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for next := range adjacency[node] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	delete(visited, start)
	return sortedKeys(visited)
}

// ListSchemaTypes returns the discovered schema types in name order.
func (s *Store) ListSchemaTypes(ctx context.Context) ([]domain.SchemaType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SchemaType, 0, len(s.state.schemaTypes))
	for name, at := range s.state.schemaTypes {
		out = append(out, domain.SchemaType{Name: name, DiscoveredAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RefreshSchemaProjections is a no-op for the in-memory store: reads filter
// file versions by schema type directly.
func (s *Store) RefreshSchemaProjections(ctx context.Context) error { return nil }

// RefreshLatestVersions recomputes the newest version per uuid for the given
// entity kind. Versions compare lexicographically as sortable timestamps.
func (s *Store) RefreshLatestVersions(ctx context.Context, kind domain.EntityKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case domain.EntityBundle:
		latest := make(map[string]domain.BundleVersion)
		for _, b := range s.state.bundles {
			if cur, ok := latest[b.UUID]; !ok || b.Version > cur.Version {
				latest[b.UUID] = b
			}
		}
		s.state.latestBundles = latest
	case domain.EntityFile:
		latest := make(map[string]domain.FileVersion)
		for _, f := range s.state.files {
			if cur, ok := latest[f.UUID]; !ok || f.Version > cur.Version {
				latest[f.UUID] = f
			}
		}
		s.state.latestFiles = latest
	}
	return nil
}

// LatestBundle reads the latest-version projection for a bundle uuid.
func (s *Store) LatestBundle(ctx context.Context, uuid string) (domain.BundleVersion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.latestBundles[uuid]
	return b, ok, nil
}

// LatestFile reads the latest-version projection for a file uuid.
func (s *Store) LatestFile(ctx context.Context, uuid string) (domain.FileVersion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.latestFiles[uuid]
	return f, ok, nil
}
