package usace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const formPage = `<form method="post" action="./GenerationSchedule.aspx" id="form1">
<div class="aspNetHidden">
<input type="hidden" name="__LASTFOCUS" id="__LASTFOCUS" value="" />
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="/wEPDwUKMTY2NjQ2+A==" />
</div>
<div class="aspNetHidden">
<input type="hidden" value="CA0B0334" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" />
<input type="hidden" id="__EVENTVALIDATION" value="/wEdAAe&amp;x" />
</div>
<select name="ddlProject" onchange="javascript:setTimeout('__doPostBack(\'ddlProject\',\'\')', 0)" id="ddlProject">
	<option value="-1">Select a project</option>
	<option selected="selected" value="BAR">Barkley</option>
	<option value="CHE">Cheatham</option>
</select>
<select id="ddlDate">
	<option value="">--</option>
	<option value="-1">Select a date</option>
	<option value="3/1/2026">Sunday, March 1, 2026</option>
	<option selected="selected" value="3/2/2026">Monday,&nbsp;March 2, 2026</option>
</select>
</form>`

func TestExtractFields(t *testing.T) {
	fields := ExtractFields(formPage)

	expected := FormFields{
		FIELD_LASTFOCUS:          "",
		FIELD_VIEWSTATE:          "/wEPDwUKMTY2NjQ2+A==",
		FIELD_VIEWSTATEGENERATOR: "CA0B0334",
		FIELD_EVENTVALIDATION:    "/wEdAAe&x",
	}
	if diff := cmp.Diff(expected, fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
	require.Equal(t, "/wEPDwUKMTY2NjQ2+A==", fields.StateToken())
}

func TestExtractFieldsMissing(t *testing.T) {
	fields := ExtractFields(`<html><body><h1>Service Unavailable</h1></body></html>`)
	require.Empty(t, fields)
	require.Equal(t, "", fields.StateToken())
}

func TestExtractOptions(t *testing.T) {
	dates := ExtractOptions(formPage, "ddlDate", "-1")
	expected := []Option{
		{Value: "3/1/2026", Label: "Sunday, March 1, 2026"},
		{Value: "3/2/2026", Label: "Monday, March 2, 2026", Selected: true},
	}
	if diff := cmp.Diff(expected, dates); diff != "" {
		t.Fatalf("unexpected date options (-want +got):\n%s", diff)
	}

	plants := ExtractOptions(formPage, "ddlProject", "-1")
	require.Len(t, plants, 2)
	require.Equal(t, "BAR", plants[0].Value)
	require.True(t, plants[0].Selected)
	require.False(t, plants[1].Selected)

	// without a placeholder the sentinel is a regular option
	require.Len(t, ExtractOptions(formPage, "ddlProject", ""), 3)

	require.Empty(t, ExtractOptions(formPage, "ddlMissing", "-1"))
}
