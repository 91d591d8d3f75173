package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/config"
)

// fakeCaramel is an in-memory case/folder service with immediately
// consistent counts.
type fakeCaramel struct {
	mu      sync.Mutex
	folders map[string]map[string]int // case -> folder id -> count
	docs    map[string]int
	samples int
	deletes int
	user    string
	pass    string
}

func newFakeCaramel() *fakeCaramel {
	return &fakeCaramel{
		folders: make(map[string]map[string]int),
		docs:    make(map[string]int),
		user:    "svc",
		pass:    "pw",
	}
}

func (f *fakeCaramel) addCase(name string, docs int, counts ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.docs[name] = docs
	f.folders[name] = make(map[string]int)

	for i, c := range counts {
		f.folders[name][strconv.Itoa(i+1)] = c
	}
}

func (f *fakeCaramel) count(caseName, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.folders[caseName][id]
}

func (f *fakeCaramel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if u, p, ok := r.BasicAuth(); !ok || u != f.user || p != f.pass {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// /case/{case}/folder[/{id}[/b]] or /case/{case}/document
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "case" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	caseName, _ := url.PathUnescape(parts[1])

	f.mu.Lock()
	defer f.mu.Unlock()

	folders, ok := f.folders[caseName]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case parts[2] == "document":
		fmt.Fprintf(w, "<documents><unfiltered_hits>%d</unfiltered_hits></documents>", f.docs[caseName])
	case len(parts) == 3 && r.Method == http.MethodGet:
		ids := make([]string, 0, len(folders))
		for id := range folders {
			ids = append(ids, id)
		}

		sort.Slice(ids, func(i, j int) bool { return atoi(ids[i]) < atoi(ids[j]) })

		fmt.Fprint(w, "<feed>")

		for _, id := range ids {
			fmt.Fprintf(w, `<folder uri="/case/%s/folder/%s"/>`, caseName, id)
		}

		fmt.Fprint(w, "</feed>")
	case len(parts) == 5 && parts[4] == "b":
		fmt.Fprintf(w, "<result><count>%d</count></result>", folders[parts[3]])
	case len(parts) == 4 && r.Method == http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.PostForm.Get("_method") {
		case "sample":
			n := atoi(r.PostForm.Get("target_count"))
			folders[parts[3]] = min(folders[parts[3]]+n, f.docs[caseName])
			f.samples++
		case "purge":
			folders[parts[3]] = 0
		}
	case len(parts) == 4 && r.Method == http.MethodDelete:
		delete(folders, parts[3])
		f.deletes++
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// testEnv isolates config, credentials and run history in a temp dir and
// clears CARAMEL_* variables.
func testEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	for _, k := range []string{config.EnvConfig, config.EnvHost, config.EnvPort, config.EnvUsername, config.EnvPassword} {
		t.Setenv(k, "")
	}

	return dir
}

// serverArgs returns the global flags pointing at srv.
func serverArgs(t *testing.T, srv *httptest.Server) []string {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return []string{"--host", u.Hostname(), "-p", u.Port(), "-u", "svc", "-w", "pw", "-q"}
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}
