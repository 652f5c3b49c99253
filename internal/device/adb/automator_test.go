package adb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidmind/droidpilot/api/schemas"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" class="android.widget.FrameLayout" clickable="false" scrollable="false" focused="false" bounds="[0,0][1080,2280]">
    <node index="0" text="Inbox" content-desc="" class="android.widget.TextView" clickable="true" scrollable="false" focused="false" bounds="[40,200][400,280]"/>
    <node index="1" text="" content-desc="Compose" class="android.widget.ImageButton" clickable="true" scrollable="false" focused="false" bounds="[880,2000][1040,2160]"/>
    <node index="2" text="" content-desc="" class="android.widget.EditText" clickable="true" scrollable="false" focused="true" bounds="[40,100][1040,180]"/>
    <node index="3" text="" content-desc="" class="android.view.View" clickable="false" scrollable="false" focused="false" bounds="[0,0][0,0]"/>
    <node index="4" text="" content-desc="" class="androidx.recyclerview.widget.RecyclerView" clickable="false" scrollable="true" focused="false" bounds="[0,300][1080,1900]"/>
  </node>
</hierarchy>`

func TestParseDump(t *testing.T) {
	snap, err := ParseDump(sampleDump, "com.google.android.gm")
	require.NoError(t, err)

	assert.Equal(t, "com.google.android.gm", snap.ApplicationID)
	// The outer FrameLayout and the bare View are decoration and filtered out.
	require.Len(t, snap.Nodes, 4)
	assert.Equal(t, 4, snap.TotalNodeCount)

	inbox := snap.Nodes[0]
	assert.Equal(t, 0, inbox.Index)
	assert.Equal(t, "Inbox", inbox.Text)
	assert.Equal(t, "TextView", inbox.ElementKind)
	assert.True(t, inbox.Clickable)
	assert.Equal(t, schemas.Rect{Left: 40, Top: 200, Right: 400, Bottom: 280}, inbox.Bounds)

	compose := snap.Nodes[1]
	assert.Equal(t, "Compose", compose.AccessibleLabel)
	assert.Equal(t, "ImageButton", compose.ElementKind)

	edit := snap.Nodes[2]
	assert.True(t, edit.Editable, "EditText class maps to editable")
	assert.True(t, edit.Focused)

	list := snap.Nodes[3]
	assert.True(t, list.Scrollable)
}

func TestParseDumpCapsNodeCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<hierarchy>`)
	for i := 0; i < schemas.MaxSnapshotNodes+25; i++ {
		fmt.Fprintf(&sb, `<node text="row %d" class="android.widget.TextView" clickable="true" bounds="[0,%d][100,%d]"/>`, i, i, i+10)
	}
	sb.WriteString(`</hierarchy>`)

	snap, err := ParseDump(sb.String(), "com.example")
	require.NoError(t, err)

	assert.Len(t, snap.Nodes, schemas.MaxSnapshotNodes)
	assert.Equal(t, schemas.MaxSnapshotNodes+25, snap.TotalNodeCount)
	// Document order is preserved and indexes are the post-filter sequence.
	assert.Equal(t, "row 0", snap.Nodes[0].Text)
	assert.Equal(t, schemas.MaxSnapshotNodes-1, snap.Nodes[schemas.MaxSnapshotNodes-1].Index)
}

func TestParseDumpRejectsMalformedXML(t *testing.T) {
	_, err := ParseDump("<hierarchy><node", "com.example")
	assert.Error(t, err)
}

func TestParseBounds(t *testing.T) {
	assert.Equal(t, schemas.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, parseBounds("[1,2][3,4]"))
	assert.Equal(t, schemas.Rect{Left: -10, Top: 0, Right: 1080, Bottom: 2280}, parseBounds("[-10,0][1080,2280]"))
	assert.Equal(t, schemas.Rect{}, parseBounds("garbage"))
	assert.Equal(t, schemas.Rect{}, parseBounds(""))
}

func TestShortClass(t *testing.T) {
	assert.Equal(t, "EditText", shortClass("android.widget.EditText"))
	assert.Equal(t, "View", shortClass("View"))
	assert.Equal(t, "", shortClass(""))
}

func TestInputEscaper(t *testing.T) {
	assert.Equal(t, "hello%sworld", inputEscaper.Replace("hello world"))
	assert.Equal(t, `cats%s\&%sdogs`, inputEscaper.Replace("cats & dogs"))
	assert.Equal(t, `\$5`, inputEscaper.Replace("$5"))
}

func TestForegroundRegex(t *testing.T) {
	dumpsys := `
    mFocusedWindow=Window{abc u0 com.google.android.gm/...}
    topResumedActivity=ActivityRecord{1a2b u0 com.google.android.gm/.ConversationListActivity t123}
`
	m := foregroundRegex.FindStringSubmatch(dumpsys)
	require.Len(t, m, 2)
	assert.Equal(t, "com.google.android.gm", m[1])
}
