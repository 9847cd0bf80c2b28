package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/zeta/pkg/zeta"
	"github.com/chosenoffset/zeta/pkg/zeta/actions"
	"github.com/chosenoffset/zeta/pkg/zeta/config"
	"github.com/chosenoffset/zeta/pkg/zeta/dom"
	"github.com/chosenoffset/zeta/pkg/zeta/journal"
	"github.com/chosenoffset/zeta/pkg/zeta/live"
)

// TestIntegrationSuite drives the todo example end to end.
func TestIntegrationSuite(t *testing.T) {
	t.Run("ConfigToRender", testConfigToRender)
	t.Run("ModelAndClick", testModelAndClick)
	t.Run("LiveServer", testLiveServer)
	t.Run("JournalReplay", testJournalReplay)
}

func loadTodo(t *testing.T, engineOpts ...func(*zeta.Options)) (*zeta.Engine, *dom.Document, *config.Config) {
	t.Helper()
	cfg, err := config.Load(filepath.Join("examples", "todo", "zeta.yaml"))
	require.NoError(t, err)

	engine := zeta.NewEngine(append([]func(*zeta.Options){cfg.EngineOptions()}, engineOpts...)...)
	require.NoError(t, cfg.Apply(engine))

	page, err := os.Open(filepath.Join("examples", "todo", "index.html"))
	require.NoError(t, err)
	defer page.Close()
	doc, err := dom.Parse(page)
	require.NoError(t, err)

	_, err = dom.Scan(doc, engine)
	require.NoError(t, err)
	return engine, doc, cfg
}

func failOnError(t *testing.T) func(*zeta.Options) {
	return func(o *zeta.Options) {
		o.OnError = func(err *zeta.Error) { t.Errorf("engine reported: %v", err) }
	}
}

func testConfigToRender(t *testing.T) {
	_, doc, _ := loadTodo(t, failOnError(t))
	page := doc.String()

	assert.Contains(t, page, `<h1 z:text="title">Todo</h1>`)
	assert.Contains(t, page, `<li data-zeta-each="t">0: milk</li><li data-zeta-each="t">1: eggs</li>`)
	assert.Contains(t, page, `<p z:show="empty" style="display: none">nothing to do</p>`)
	assert.Contains(t, page, `<p id="count" z:text="summary">2 items</p>`)
	assert.Equal(t, []string{"add", "clear", "draft"}, doc.Actions().Elements())
}

func testModelAndClick(t *testing.T) {
	engine, doc, _ := loadTodo(t, failOnError(t))

	require.NoError(t, doc.Dispatch("draft", actions.InputEvent, "bread"))
	assert.Equal(t, "bread", engine.Evaluate("draft"))

	require.NoError(t, doc.Dispatch("add", actions.ClickEvent, nil))
	assert.Equal(t, "", engine.Evaluate("draft"))
	assert.Equal(t, "3 items", engine.Evaluate("summary"))

	page := doc.String()
	assert.Contains(t, page, `<li data-zeta-each="t">2: bread</li>`)
	assert.Contains(t, page, `<input id="draft" z:model="draft" value="" data-zeta-id="draft"/>`)

	require.NoError(t, doc.Dispatch("clear", actions.ClickEvent, nil))
	assert.Equal(t, true, engine.Evaluate("empty"))

	page = doc.String()
	assert.NotContains(t, page, "<li")
	assert.Contains(t, page, `<p z:show="empty">nothing to do</p>`)
	assert.Contains(t, page, `<p id="count" z:text="summary">0 items</p>`)
}

func testLiveServer(t *testing.T) {
	engine, doc, _ := loadTodo(t, failOnError(t))
	server := live.NewServer("", engine, doc, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	defer server.Stop()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() live.Message {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg live.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	require.Equal(t, "hello", read().Type)

	require.NoError(t, conn.WriteJSON(live.ClientMessage{Type: "event", Element: "clear", Event: "click"}))

	var changed []string
	for {
		msg := read()
		if msg.Type == "render" {
			data, err := json.Marshal(msg.Data)
			require.NoError(t, err)
			assert.Contains(t, string(data), "0 items")
			break
		}
		require.Equal(t, "change", msg.Type)
		change := msg.Data.(map[string]any)
		changed = append(changed, change["key"].(string))
	}
	assert.Equal(t, []string{"todos", "empty", "summary"}, changed)
}

func testJournalReplay(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	defer j.Close()

	cfg, err := config.Load(filepath.Join("examples", "todo", "zeta.yaml"))
	require.NoError(t, err)
	engine := zeta.NewEngine(cfg.EngineOptions())
	session, err := journal.Attach(ctx, engine, j, "todo")
	require.NoError(t, err)
	require.NoError(t, cfg.Apply(engine))

	doc, err := dom.ParseString(`<input id="draft" z:model="draft"><button id="add" z:click="todos = append(todos, draft); draft = ''">add</button>`)
	require.NoError(t, err)
	_, err = dom.Scan(doc, engine)
	require.NoError(t, err)

	require.NoError(t, doc.Dispatch("draft", actions.InputEvent, "bread"))
	require.NoError(t, doc.Dispatch("add", actions.ClickEvent, nil))

	replayed := zeta.NewEngine(cfg.EngineOptions())
	require.NoError(t, cfg.Apply(replayed))
	applied, err := j.Replay(ctx, session, replayed)
	require.NoError(t, err)
	assert.Positive(t, applied)
	assert.Equal(t, engine.GetState(), replayed.GetState())
}
