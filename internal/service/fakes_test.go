package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmfrees/photovault/internal/model"
	"github.com/jmfrees/photovault/internal/repository"
	"github.com/jmfrees/photovault/internal/service/provider"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// memStorage is an in-memory Storage with per-path failure injection.
type memStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failSave   map[string]error
	failDelete map[string]error
	listCalls  int
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects:    make(map[string][]byte),
		failSave:   make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (m *memStorage) Save(_ context.Context, path string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSave[path]; err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[path] = data
	return nil
}

func (m *memStorage) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: not found", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDelete[path]; err != nil {
		return err
	}
	delete(m.objects, path)
	return nil
}

func (m *memStorage) PresignedURL(path string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + path, nil
}

func (m *memStorage) List(_ context.Context, prefix string, pageSize int32, pageToken string) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	var keys []string
	for k := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if pageToken != "" {
		start = sort.SearchStrings(keys, pageToken)
		if start < len(keys) && keys[start] == pageToken {
			start++
		}
	}

	end := start + int(pageSize)
	if end > len(keys) {
		end = len(keys)
	}

	page := keys[start:end]
	next := ""
	if end < len(keys) && len(page) > 0 {
		next = page[len(page)-1]
	}
	return page, next, nil
}

func (m *memStorage) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// fakePhotoRepo is an in-memory PhotoRepository.
type fakePhotoRepo struct {
	mu        sync.Mutex
	photos    map[string]*model.Photo
	insertErr error
}

func newFakePhotoRepo() *fakePhotoRepo {
	return &fakePhotoRepo{photos: make(map[string]*model.Photo)}
}

func (r *fakePhotoRepo) InsertMany(_ context.Context, photos []*model.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, p := range photos {
		cp := *p
		r.photos[p.ID] = &cp
	}
	return nil
}

func (r *fakePhotoRepo) ByID(_ context.Context, id, ownerID string) (*model.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[id]
	if !ok || p.OwnerID != ownerID {
		return nil, repository.ErrPhotoNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePhotoRepo) AllForOwner(_ context.Context, ownerID string, _ repository.PhotoFilter) ([]*model.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Photo
	for _, p := range r.photos {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePhotoRepo) Update(_ context.Context, photo *model.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[photo.ID]; !ok {
		return repository.ErrPhotoNotFound
	}
	cp := *photo
	r.photos[photo.ID] = &cp
	return nil
}

func (r *fakePhotoRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrPhotoNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *fakePhotoRepo) DeleteAllForOwner(_ context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.photos {
		if p.OwnerID == ownerID {
			delete(r.photos, id)
			n++
		}
	}
	return n, nil
}

func (r *fakePhotoRepo) TouchLastAccessed(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrPhotoNotFound
	}
	now := time.Now()
	p.LastAccessedAt = &now
	return nil
}

func (r *fakePhotoRepo) rowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.photos)
}

func (r *fakePhotoRepo) byFilename(filename string) *model.Photo {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.photos {
		if p.Filename == filename {
			cp := *p
			return &cp
		}
	}
	return nil
}

// fakeSettingRepo is an in-memory SettingRepository.
type fakeSettingRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingRepo() *fakeSettingRepo {
	return &fakeSettingRepo{values: make(map[string]string)}
}

func (r *fakeSettingRepo) Get(_ context.Context, ownerID, key string) (*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[ownerID+"/"+key]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &model.Setting{OwnerID: ownerID, Key: key, Value: v}, nil
}

func (r *fakeSettingRepo) Set(_ context.Context, ownerID, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[ownerID+"/"+key] = value
	return nil
}

// fakeIntegrationRepo is an in-memory IntegrationRepository.
type fakeIntegrationRepo struct {
	mu           sync.Mutex
	integrations map[string]*model.Integration
}

func newFakeIntegrationRepo() *fakeIntegrationRepo {
	return &fakeIntegrationRepo{integrations: make(map[string]*model.Integration)}
}

func (r *fakeIntegrationRepo) ByOwnerAndProvider(_ context.Context, ownerID, providerName string) (*model.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.integrations[ownerID+"/"+providerName]
	if !ok {
		return nil, repository.ErrIntegrationNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *fakeIntegrationRepo) Upsert(_ context.Context, integration *model.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *integration
	r.integrations[integration.OwnerID+"/"+integration.Provider] = &cp
	return nil
}

func (r *fakeIntegrationRepo) Delete(_ context.Context, ownerID, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.integrations, ownerID+"/"+providerName)
	return nil
}

// fakeTokens implements TokenRefresher.
type fakeTokens struct {
	mu        sync.Mutex
	newToken  string
	err       error
	refreshed int
}

func (f *fakeTokens) Refresh(_ context.Context, integration *model.Integration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.refreshed++
	integration.AccessToken = f.newToken
	return f.newToken, nil
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

// fakeProvider is a scripted provider.Client.
type fakeProvider struct {
	mu sync.Mutex

	pickerURI  string
	createErrs []error // popped per CreateSession call
	createToks []string

	readyAfter int // polls before MediaItemsSet; negative means never
	pollCount  int
	pollErrs   map[int]error // poll number (1-based) -> error

	media      []provider.MediaItem
	mediaBytes map[string][]byte // item ID -> original bytes
	fetchErr   error

	deleteCount int

	uploadErrs []error
	uploadIDs  int
	uploaded   []string // filenames
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pickerURI:  "https://photos.example.com/pick/sess-1",
		readyAfter: 0,
		pollErrs:   make(map[int]error),
		mediaBytes: make(map[string][]byte),
	}
}

func (f *fakeProvider) Name() string { return model.ProviderGooglePhotos }

func (f *fakeProvider) CreateSession(_ context.Context, token string) (*provider.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createToks = append(f.createToks, token)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &provider.Session{ID: "sess-1", PickerURI: f.pickerURI, CreatedAt: time.Now()}, nil
}

func (f *fakeProvider) GetSession(_ context.Context, _, _ string) (*provider.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCount++
	if err := f.pollErrs[f.pollCount]; err != nil {
		return nil, err
	}
	ready := f.readyAfter >= 0 && f.pollCount > f.readyAfter
	return &provider.SessionStatus{MediaItemsSet: ready}, nil
}

func (f *fakeProvider) FetchMedia(_ context.Context, _, _ string) ([]provider.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.media, nil
}

func (f *fakeProvider) DownloadMedia(_ context.Context, _ string, item provider.MediaItem) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.mediaBytes[item.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no bytes for %s", provider.ErrTransport, item.ID)
	}
	return data, nil
}

func (f *fakeProvider) DeleteSession(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCount++
	return nil
}

func (f *fakeProvider) Upload(_ context.Context, _, filename, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.uploadIDs++
	f.uploaded = append(f.uploaded, filename)
	return fmt.Sprintf("ext-%d", f.uploadIDs), nil
}

func (f *fakeProvider) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCount
}

func (f *fakeProvider) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCount
}
