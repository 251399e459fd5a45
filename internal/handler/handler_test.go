package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"picturehub/internal/auth"
	"picturehub/internal/domain"
	"picturehub/internal/lock"
	"picturehub/internal/preview"
	"picturehub/internal/repository/memstore"
	"picturehub/internal/service"
	"picturehub/internal/storage/local"
	"picturehub/internal/upload"
)

type stubTransformer struct{}

func (stubTransformer) Inspect([]byte) (preview.Info, error) {
	return preview.Info{Width: 300, Height: 200, Format: "png"}, nil
}

func (stubTransformer) Thumbnail(data []byte) ([]byte, error) { return data, nil }

func (stubTransformer) Preview(data []byte) ([]byte, error) { return data, nil }

type testServer struct {
	*httptest.Server
	verifier *auth.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	ts := &testServer{verifier: auth.NewVerifier("test-secret")}
	mux := http.NewServeMux()
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	objects, err := local.New(t.TempDir(), ts.URL+"/objects")
	require.NoError(t, err)

	store := memstore.New()
	ledger := service.NewQuotaLedger(log)
	perms := service.NewPermissionService()
	pipeline := upload.NewPipeline(log, objects, stubTransformer{}, t.TempDir())

	pictures := service.NewPictureService(log, store, pipeline, ledger, perms, nil, nil)
	spaces := service.NewSpaceService(log, store, lock.NewKeyedMutex(), ledger, perms)

	router := NewRouter(
		RouterConfig{RequestTimeout: 10 * time.Second, AllowedOrigins: []string{"*"}},
		NewPictureHandler(log, ts.verifier, pictures),
		NewSpaceHandler(log, ts.verifier, spaces),
		NewObjectHandler(log, objects),
	)
	mux.Handle("/", router)
	return ts
}

func (ts *testServer) token(t *testing.T, user domain.User) string {
	t.Helper()
	token, err := ts.verifier.GenerateToken(user, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload any) (int, Response) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return ts.do(t, method, path, token, bytes.NewReader(raw), "application/json")
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeData(t *testing.T, resp Response, dest any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

func TestUploadIntoSpaceAndServeObject(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.token(t, domain.User{ID: "alice", Role: domain.RoleUser})

	status, resp := ts.doJSON(t, http.MethodPost, "/api/space/", alice, domain.SpaceAddRequest{SpaceName: "holiday"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	var space domain.Space
	decodeData(t, resp, &space)

	body, ct := multipartBody(t, "beach.png", []byte("png-bytes"), map[string]string{
		"spaceId": "1",
		"picName": "beach",
	})
	status, resp = ts.do(t, http.MethodPost, "/api/picture/upload", alice, body, ct)
	require.Equal(t, http.StatusOK, status, resp.Message)

	var pic domain.Picture
	decodeData(t, resp, &pic)
	assert.Equal(t, "beach", pic.Name)
	assert.Equal(t, 300, pic.PicWidth)
	assert.Equal(t, 1.5, pic.PicScale)
	assert.True(t, strings.HasPrefix(pic.URL, ts.URL+"/objects/space/1/"))
	assert.True(t, strings.HasSuffix(pic.PreviewURL, "_preview.webp"))

	objResp, err := http.Get(pic.URL)
	require.NoError(t, err)
	defer objResp.Body.Close()
	data, err := io.ReadAll(objResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, objResp.StatusCode)
	assert.Equal(t, "png-bytes", string(data))

	status, resp = ts.do(t, http.MethodGet, "/api/space/1/quota", alice, nil, "")
	require.Equal(t, http.StatusOK, status)
	var info domain.QuotaInfo
	decodeData(t, resp, &info)
	assert.Equal(t, int64(len("png-bytes")), info.UsedSpace)
	assert.Equal(t, int64(1), info.UsedCount)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.token(t, domain.User{ID: "alice", Role: domain.RoleUser})
	bob := ts.token(t, domain.User{ID: "bob", Role: domain.RoleUser})

	status, resp := ts.doJSON(t, http.MethodPost, "/api/space/", "", domain.SpaceAddRequest{})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40100, resp.Code)

	status, _ = ts.doJSON(t, http.MethodPost, "/api/space/", alice, domain.SpaceAddRequest{})
	require.Equal(t, http.StatusOK, status)

	status, resp = ts.doJSON(t, http.MethodPost, "/api/space/", alice, domain.SpaceAddRequest{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 40900, resp.Code)

	status, resp = ts.do(t, http.MethodGet, "/api/space/1", bob, nil, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 40300, resp.Code)

	status, resp = ts.do(t, http.MethodGet, "/api/picture/42", "", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, resp.Code)

	body, ct := multipartBody(t, "notes.txt", []byte("text"), nil)
	status, resp = ts.do(t, http.MethodPost, "/api/picture/upload", alice, body, ct)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40000, resp.Code)

	status, resp = ts.do(t, http.MethodPost, "/api/picture/list", "", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40000, resp.Code)
}

func TestPublicListing(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, domain.User{ID: "root", Role: domain.RoleAdmin})
	alice := ts.token(t, domain.User{ID: "alice", Role: domain.RoleUser})

	body, ct := multipartBody(t, "a.png", []byte("a"), nil)
	status, _ := ts.do(t, http.MethodPost, "/api/picture/upload", admin, body, ct)
	require.Equal(t, http.StatusOK, status)

	body, ct = multipartBody(t, "b.png", []byte("b"), nil)
	status, _ = ts.do(t, http.MethodPost, "/api/picture/upload", alice, body, ct)
	require.Equal(t, http.StatusOK, status)

	status, resp := ts.doJSON(t, http.MethodPost, "/api/picture/list", "", domain.PictureQuery{})
	require.Equal(t, http.StatusOK, status)
	var page domain.Page[domain.Picture]
	decodeData(t, resp, &page)
	assert.Equal(t, int64(1), page.Total)

	status, _ = ts.doJSON(t, http.MethodPost, "/api/picture/review", admin, domain.PictureReviewRequest{
		ID: 2, ReviewStatus: domain.ReviewPass,
	})
	require.Equal(t, http.StatusOK, status)

	status, resp = ts.doJSON(t, http.MethodPost, "/api/picture/list", "", domain.PictureQuery{})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp, &page)
	assert.Equal(t, int64(2), page.Total)

	status, resp = ts.do(t, http.MethodGet, "/api/space/levels", "", nil, "")
	require.Equal(t, http.StatusOK, status)
	var levels []domain.SpaceLevelInfo
	decodeData(t, resp, &levels)
	assert.Len(t, levels, 3)
}
