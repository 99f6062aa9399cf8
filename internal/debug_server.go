package internal

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Plain HTML inspector for the raw key space. Debug builds only; never
// exposed on the public listener.
const inspectPage = `<!DOCTYPE html>
<html><head><title>store inspector</title></head><body>
<h1>Key space</h1>
<form method="get"><input name="prefix" value="{{.Prefix}}"><button>Scan</button></form>
<table border="1" cellpadding="4">
<tr><th>Key</th><th>Conversation</th><th>Value</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Conversation}}</td><td><code>{{.Value}}</code></td></tr>{{end}}
</table></body></html>`

type InspectRow struct {
	Key          string
	Conversation string
	Value        string
}

type PageData struct {
	Prefix string
	Items  []InspectRow
}

// StartDebugServer exposes a read-only HTML view over the badger key space
// on a dedicated port. Useful to eyeball the message log layout while
// developing; the handler scans the requested prefix on every request.
func StartDebugServer(db *badger.DB, port int, endpoint string) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.New("inspect").Parse(inspectPage))

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{Prefix: prefix}
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func mapRow(key string, val []byte) InspectRow {
	row := InspectRow{Key: key, Value: string(val)}
	parts := strings.Split(key, ":")
	if len(parts) >= 2 {
		row.Conversation = parts[1]
	}
	return row
}
