package probe

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{name: "json object", body: `{"header":{"resultCode":"0000"}}`, want: KindJSON},
		{name: "json array", body: ` [1, 2, 3] `, want: KindJSON},
		{name: "json with bom", body: "\xEF\xBB\xBF{\"ok\":true}", want: KindJSON},
		{name: "bare json string", body: `"not found"`, want: KindText},
		{name: "truncated json", body: `{"header":`, want: KindText},
		{name: "xml with prolog", body: `<?xml version="1.0" encoding="UTF-8"?><response><header/></response>`, want: KindXML},
		{name: "xml with comment", body: "<!-- gateway -->\n<OpenAPI_ServiceResponse><cmmMsgHeader/></OpenAPI_ServiceResponse>", want: KindXML},
		{name: "xml root only", body: `<response>`, want: KindXML},
		{name: "html document", body: `<!DOCTYPE html><html><body>Unexpected errors</body></html>`, want: KindText},
		{name: "plain text", body: `Unexpected errors`, want: KindText},
		{name: "angle text", body: `< not markup`, want: KindText},
		{name: "empty", body: ``, want: KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectKind([]byte(tt.body)); got != tt.want {
				t.Errorf("DetectKind(%q) = %s, want %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestSnippetCountsCharacters(t *testing.T) {
	body := []byte(strings.Repeat("대구역", 300))
	got := Snippet(body, DefaultSnippetLength)
	if n := len([]rune(got)); n != DefaultSnippetLength {
		t.Errorf("snippet has %d characters, want %d", n, DefaultSnippetLength)
	}
	if !strings.HasPrefix(string(body), got) {
		t.Error("snippet is not a prefix of the body")
	}

	short := []byte("short")
	if got := Snippet(short, DefaultSnippetLength); got != "short" {
		t.Errorf("Snippet(short) = %q", got)
	}
	if got := Snippet(short, 0); got != "" {
		t.Errorf("Snippet(n=0) = %q, want empty", got)
	}
}

func TestClassifySuccess(t *testing.T) {
	fault := &TransportFault{Kind: FaultTimeout, Err: errors.New("deadline")}

	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{name: "200 json", result: Result{StatusCode: 200, Kind: KindJSON, Snippet: `{"header":{"resultCode":"0000"}}`}, want: true},
		{name: "200 xml", result: Result{StatusCode: 200, Kind: KindXML, Snippet: `<response><header>`}, want: true},
		{name: "200 text", result: Result{StatusCode: 200, Kind: KindText, Snippet: "ok"}, want: false},
		{name: "200 unknown", result: Result{StatusCode: 200, Kind: KindUnknown}, want: false},
		{name: "404 unknown", result: Result{StatusCode: 404, Kind: KindUnknown}, want: false},
		{name: "no status unknown", result: Result{Kind: KindUnknown, Err: fault}, want: false},
		{name: "500 json", result: Result{StatusCode: 500, Kind: KindJSON, Snippet: `{}`}, want: false},
		{
			name: "200 xml service error",
			result: Result{StatusCode: 200, Kind: KindXML, Snippet: "<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg>" +
				"<returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg>"},
			want: false,
		},
		{
			name:   "200 json missing parameter",
			result: Result{StatusCode: 200, Kind: KindJSON, Snippet: `{"resultMsg":"NO_MANDATORY_REQUEST_PARAMETERS_ERROR"}`},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySuccess(&tt.result); got != tt.want {
				t.Errorf("ClassifySuccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyWithMarkers(t *testing.T) {
	base := DefaultPolicy()
	custom := base.WithMarkers(`"resultMsg":"LIMITED"`)

	r := &Result{StatusCode: 200, Kind: KindJSON, Snippet: `{"header":{"resultCode":"0000","resultMsg":"LIMITED"}}`}
	if !base.Success(r) {
		t.Error("default policy should accept an unknown result message")
	}
	if custom.Success(r) {
		t.Error("custom marker should reject the result")
	}
	if got := custom.Marker(r); got != `"resultMsg":"LIMITED"` {
		t.Errorf("Marker = %q", got)
	}
	if len(base.Markers) != len(DefaultErrorMarkers) {
		t.Error("WithMarkers must not modify the receiver")
	}
}

func TestResultCodeCheck(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		body     string
		wantCode string
		found    bool
		success  bool
	}{
		{name: "json accepted", kind: KindJSON, body: `{"header":{"resultCode":"0000","resultMsg":"NORMAL SERVICE."}}`, wantCode: "0000", found: true, success: true},
		{name: "json invalid key", kind: KindJSON, body: `{"header":{"resultCode":"9999","resultMsg":"Invalid Key"}}`, wantCode: "9999", found: true},
		{name: "json wrapped", kind: KindJSON, body: `{"response":{"header":{"resultCode":"30","resultMsg":"key"}}}`, wantCode: "30", found: true},
		{name: "json numeric code", kind: KindJSON, body: `{"header":{"resultCode":0}}`, wantCode: "0", found: true},
		{name: "json without header", kind: KindJSON, body: `[{"routeId":"DGB20000001"}]`, success: true},
		{name: "xml accepted", kind: KindXML, body: `<response><header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header><body/></response>`, wantCode: "00", found: true, success: true},
		{name: "xml rejected", kind: KindXML, body: "<?xml version=\"1.0\"?><response><header>\n  <resultCode> 03 </resultCode></header></response>", wantCode: "03", found: true},
		{name: "xml nested header ignored", kind: KindXML, body: `<response><body><items><item><header><resultCode>99</resultCode></header></item></items></body></response>`, success: true},
	}

	policy := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, found := ResultCode([]byte(tt.body), tt.kind)
			if found != tt.found || code != tt.wantCode {
				t.Errorf("ResultCode = %q, %v; want %q, %v", code, found, tt.wantCode, tt.found)
			}
			r := &Result{StatusCode: 200, Kind: tt.kind, Snippet: tt.body}
			if got := policy.Success(r); got != tt.success {
				t.Errorf("Success = %v, want %v (marker %q)", got, tt.success, policy.Marker(r))
			}
		})
	}
}

func TestWithSuccessCodes(t *testing.T) {
	r := &Result{StatusCode: 200, Kind: KindJSON, Snippet: `{"header":{"resultCode":"INFO-000"}}`}
	if ClassifySuccess(r) {
		t.Fatal("unknown code should fail under the default policy")
	}
	custom := DefaultPolicy().WithSuccessCodes("INFO-000")
	if !custom.Success(r) {
		t.Errorf("custom success code rejected: %q", custom.Marker(r))
	}
	if off := DefaultPolicy().WithSuccessCodes(); !off.Success(r) {
		t.Error("an empty code list should disable the check")
	}
}

func TestResultMarkerWinsOverSnippet(t *testing.T) {
	// The prober fills Marker from the full body; the snippet may not
	// reach the offending text.
	r := &Result{StatusCode: 200, Kind: KindXML, Snippet: "<response><header>", Marker: "SERVICE ERROR"}
	if ClassifySuccess(r) {
		t.Error("a result carrying a marker must not succeed")
	}
	if got := DefaultPolicy().Marker(r); got != "SERVICE ERROR" {
		t.Errorf("Marker = %q", got)
	}
}

func TestSniffKind(t *testing.T) {
	if got := sniffKind([]byte(`{"items":[1,2,`)); got != KindJSON {
		t.Errorf("cut json = %s", got)
	}
	if got := sniffKind([]byte(`<response><body><item>`)); got != KindXML {
		t.Errorf("cut xml = %s", got)
	}
	if got := sniffKind([]byte(`<html><body>`)); got != KindText {
		t.Errorf("cut html = %s", got)
	}
}

func TestCandidateKeyAndValidate(t *testing.T) {
	c := Candidate{Path: "getBs02", Params: []Param{{Name: "routeId", Value: "DGB20000001"}}}
	if got, want := c.Key(), "getBs02?routeId=DGB20000001 [default]"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if v, ok := c.ParamValue("routeId"); !ok || v != "DGB20000001" {
		t.Errorf("ParamValue = %q, %v", v, ok)
	}

	for _, name := range []string{"manual", "raw", "manual-unencoded-key"} {
		if e, err := ParseEncoding(name); err != nil || e != EncodingManualKey {
			t.Errorf("ParseEncoding(%q) = %q, %v", name, e, err)
		}
	}
	if _, err := ParseEncoding("double"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("aac18bb3e975832f"); got != "aac1****" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("short"); got != "****" {
		t.Errorf("Redact(short) = %q", got)
	}
	if got := Redact(""); got != "" {
		t.Errorf("Redact(empty) = %q", got)
	}
	if got := Redact("대구광역시버스키값"); got != "대구광역****" {
		t.Errorf("Redact(non-ascii) = %q, want whole characters", got)
	}
}
