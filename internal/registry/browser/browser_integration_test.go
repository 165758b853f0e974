//go:build integration

package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medverify/internal/registry"
)

// searchPage mimics the registry: results and the detail modal are rendered
// by script after the search button is clicked.
const searchPage = `<!doctype html>
<html><body>
<input id="DocRegNo"><button class="fn-BtnDocRegNo" onclick="search()">Search</button>
<table><tbody id="resultTBody"></tbody></table>
<div class="modal-dialog" style="display:none"><span id="license_valid"></span></div>
<script>
function search() {
  var no = document.getElementById('DocRegNo').value;
  if (no !== 'PK-1001') { return; }
  setTimeout(function () {
    document.getElementById('resultTBody').innerHTML =
      '<tr><td>PK-1001</td><td>ALI KHAN</td><td>TARIQ KHAN</td><td>Permanent</td>' +
      '<td><a class="fn-viewdetail" href="#" onclick="detail();return false;">View Detail</a></td></tr>';
  }, 100);
}
function detail() {
  setTimeout(function () {
    document.getElementById('license_valid').textContent = '31/12/2027';
    document.querySelector('.modal-dialog').style.display = 'block';
  }, 100);
}
</script>
</body></html>`

func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary on PATH")
	return ""
}

func TestLauncher_EndToEnd(t *testing.T) {
	path := chromePath(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	launcher := NewLauncher(Config{BaseURL: srv.URL, Headless: true, ExecPath: path}, nil)
	client := registry.NewClient(launcher, registry.WithTimeouts(20*time.Second, 3*time.Second, 3*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	t.Run("found", func(t *testing.T) {
		rec, err := client.Lookup(ctx, "PK-1001")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "ALI KHAN", rec.FullName)
		require.NotNil(t, rec.ValidUntil)
		assert.Equal(t, time.December, rec.ValidUntil.Month())
	})

	t.Run("not found", func(t *testing.T) {
		rec, err := client.Lookup(ctx, "PK-9999")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}
