// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/ledger"
)

var counterID = clarity.MustPrincipal("SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.counter")

const counterSource = `(define-data-var count uint u5)
(define-map owners uint principal)
(define-read-only (get-count) (var-get count))`

// fakeNode serves a single contract deployed at height 100.
type fakeNode struct {
	mu     sync.Mutex
	hits   map[string]int
	apiKey string
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.hits[r.URL.Path]++
	n.apiKey = r.Header.Get(apiKeyHeader)
	n.mu.Unlock()

	addr := counterID.Address()
	switch {
	case r.URL.Path == "/v2/contracts/source/"+addr+"/counter":
		writeJSON(w, map[string]interface{}{"source": counterSource, "publish_height": 100})
	case r.URL.Path == "/extended/v1/contract/"+counterID.ID():
		writeJSON(w, map[string]interface{}{"block_height": 100, "clarity_version": 2})
	case strings.HasPrefix(r.URL.Path, "/extended/v2/blocks/"):
		h := strings.TrimPrefix(r.URL.Path, "/extended/v2/blocks/")
		writeJSON(w, map[string]interface{}{"index_block_hash": "0xabc" + h})
	case r.URL.Path == "/v2/data_var/"+addr+"/counter/count":
		v := clarity.NewUInt(5)
		if r.URL.Query().Get("tip") == "abc150" {
			v = clarity.NewUInt(7)
		}
		hex, _ := clarity.SerializeHex(v)
		writeJSON(w, map[string]string{"data": hex})
	case r.URL.Path == "/v2/map_entry/"+addr+"/counter/owners" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var key string
		_ = json.Unmarshal(body, &key)
		want, _ := clarity.SerializeHex(clarity.NewUInt(1))
		v := clarity.None
		if key == want {
			v = clarity.Some(clarity.MustPrincipal("SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9"))
		}
		hex, _ := clarity.SerializeHex(v)
		writeJSON(w, map[string]string{"data": hex})
	case r.URL.Path == "/v2/data_var/"+addr+"/counter/broken":
		http.Error(w, "boom", http.StatusInternalServerError)
	default:
		http.NotFound(w, r)
	}
}

func (n *fakeNode) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hits[path]
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSource(t *testing.T, initial uint32) (*Source, *fakeNode) {
	node := &fakeNode{hits: make(map[string]int)}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	src, err := NewSource(Config{
		APIURL:        srv.URL,
		InitialHeight: initial,
		APIKey:        "secret",
		CacheDir:      t.TempDir(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src, node
}

func TestFetchContract(t *testing.T) {
	require := require.New(t)
	src, node := newTestSource(t, 150)
	ctx := context.Background()

	rec, err := src.FetchContract(ctx, counterID)
	require.NoError(err)
	require.Equal(counterSource, string(rec.Source))
	require.Equal(uint32(100), rec.Height)
	require.Equal(clarity.Clarity2, rec.Version)
	require.Equal(clarity.Epoch21, rec.Epoch)
	require.True(rec.Remote)
	require.Equal("secret", node.apiKey)

	_, err = src.FetchContract(ctx, counterID)
	require.NoError(err)
	require.Equal(1, node.count("/extended/v1/contract/"+counterID.ID()))

	_, err = src.FetchContract(ctx, counterID.Standard().Contract("missing"))
	require.ErrorIs(err, ledger.ErrNotFound)
}

func TestFetchBeforeDeployment(t *testing.T) {
	require := require.New(t)
	src, _ := newTestSource(t, 50)

	_, err := src.FetchContract(context.Background(), counterID)
	require.ErrorIs(err, ErrUnavailableAtHeight)
}

func TestFetchDataVarAtHeight(t *testing.T) {
	require := require.New(t)
	src, node := newTestSource(t, 150)
	ctx := context.Background()

	v, err := src.FetchDataVar(ctx, counterID, "count", 0)
	require.NoError(err)
	require.Equal("u7", v.String())

	v, err = src.FetchDataVar(ctx, counterID, "count", 120)
	require.NoError(err)
	require.Equal("u5", v.String())

	// past the fork point reads the fork point
	v, err = src.FetchDataVar(ctx, counterID, "count", 900)
	require.NoError(err)
	require.Equal("u7", v.String())

	_, err = src.FetchDataVar(ctx, counterID, "count", 99)
	require.ErrorIs(err, ErrUnavailableAtHeight)

	path := fmt.Sprintf("/v2/data_var/%s/counter/count", counterID.Address())
	require.Equal(2, node.count(path))
	require.Equal(1, node.count("/extended/v2/blocks/150"))

	_, err = src.FetchDataVar(ctx, counterID, "broken", 0)
	require.ErrorIs(err, ErrFetch)
}

func TestFetchMapEntry(t *testing.T) {
	require := require.New(t)
	src, _ := newTestSource(t, 150)
	ctx := context.Background()

	entry, err := src.FetchMapEntry(ctx, counterID, "owners", clarity.NewUInt(1), 0)
	require.NoError(err)
	require.Equal("(some 'SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9)", entry.String())

	entry, err = src.FetchMapEntry(ctx, counterID, "owners", clarity.NewUInt(2), 0)
	require.NoError(err)
	require.True(entry.IsNone())
}

func TestCacheSurvivesReopen(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	c, err := OpenCache(dir)
	require.NoError(err)
	key := Key(counterID.ID(), kindDataVar, "count@abc")
	require.NoError(c.Put(key, counterID.ID(), kindDataVar, []byte("0x01")))
	require.NoError(c.Put(key, counterID.ID(), kindDataVar, []byte("0x02")))
	require.NoError(c.Close())

	c, err = OpenCache(dir)
	require.NoError(err)
	defer c.Close()
	v, ok, err := c.Get(key)
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("0x01"), v)

	n, err := c.Len()
	require.NoError(err)
	require.Equal(1, n)

	_, ok, err = c.Get(Key(counterID.ID(), kindDataVar, "other"))
	require.NoError(err)
	require.False(ok)
}

func TestStoreFallsBackToSource(t *testing.T) {
	require := require.New(t)
	src, _ := newTestSource(t, 150)

	s := ledger.NewStore(nil)
	s.SetRemote(src)

	rec, err := s.Contract(counterID)
	require.NoError(err)
	require.True(rec.Remote)

	v, err := s.DataVar(counterID, "count")
	require.NoError(err)
	require.Equal("u7", v.String())
}

func TestStoreAtBlockMapsOntoNetwork(t *testing.T) {
	require := require.New(t)
	src, node := newTestSource(t, 150)

	s := ledger.NewStore(nil)
	s.SetWriteHeight(10)
	s.SetRemote(src)
	s.SetWriteHeight(13)

	// local blocks at and after the fork read the fork state
	for _, h := range []uint32{10, 12, 13} {
		restore := s.AtHeight(h)
		v, err := s.DataVar(counterID, "count")
		restore()
		require.NoError(err)
		require.Equal("u7", v.String())
	}

	// one local block before the fork is network height 149
	restore := s.AtHeight(9)
	v, err := s.DataVar(counterID, "count")
	restore()
	require.NoError(err)
	require.Equal("u5", v.String())
	require.Equal(1, node.count("/extended/v2/blocks/149"))

	restore = s.AtHeight(9)
	entry, err := s.MapEntry(counterID, "owners", clarity.NewUInt(1))
	restore()
	require.NoError(err)
	require.False(entry.IsNone())
}
