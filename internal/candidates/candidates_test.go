package candidates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maxvaer/apiprobe/internal/probe"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLines(t *testing.T) {
	path := writeFile(t, "functions.txt", `# arrival info
getRealtime02?bsId=7001001400

getBs02?routeId=DGB20000001 manual
getBasic02
`)

	got, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(got), got)
	}
	if got[0].Path != "getRealtime02" || got[0].Encoding != probe.EncodingDefault {
		t.Errorf("first = %v", got[0])
	}
	if v, _ := got[0].ParamValue("bsId"); v != "7001001400" {
		t.Errorf("bsId = %q", v)
	}
	if got[1].Encoding != probe.EncodingManualKey {
		t.Errorf("second encoding = %q, want manual", got[1].Encoding)
	}
	if len(got[2].Params) != 0 {
		t.Errorf("third params = %v, want none", got[2].Params)
	}
}

func TestLoadKeepsDuplicates(t *testing.T) {
	path := writeFile(t, "dups.txt", "getPos02\ngetPos02\n")
	got, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected duplicates to survive, got %d entries", len(got))
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "candidates.yaml", `
- path: getRealtime02
  params:
    bsId: "7001001400"
    pageNo: 1
- path: getStationList
  params:
    - stationNm=%EB%8C%80%EA%B5%AC%EC%97%AD
  encoding: manual-unencoded-key
`)

	got, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if len(got[0].Params) != 2 || got[0].Params[0].Name != "bsId" || got[0].Params[1].Name != "pageNo" {
		t.Errorf("params not in document order: %v", got[0].Params)
	}
	if got[0].Params[1].Value != "1" {
		t.Errorf("pageNo = %q", got[0].Params[1].Value)
	}
	if v, _ := got[1].ParamValue("stationNm"); v != "대구역" {
		t.Errorf("stationNm = %q, want unescaped value", v)
	}
	if got[1].Encoding != probe.EncodingManualKey {
		t.Errorf("encoding = %q", got[1].Encoding)
	}
}

func TestLoadYAMLRejectsUnknownEncoding(t *testing.T) {
	path := writeFile(t, "bad.yml", "- path: x\n  encoding: twice\n")
	if _, err := Load(path, LoadOptions{}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestEncodingsExpansion(t *testing.T) {
	got, err := FromLines([]string{"getRoute02", "getLine02 default"}, LoadOptions{
		Encodings: []probe.Encoding{probe.EncodingDefault, probe.EncodingManualKey},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The first entry expands; the second named its encoding and does not.
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(got), got)
	}
	if got[0].Encoding != probe.EncodingDefault || got[1].Encoding != probe.EncodingManualKey {
		t.Errorf("expansion order = %q, %q", got[0].Encoding, got[1].Encoding)
	}
	if got[2].Path != "getLine02" {
		t.Errorf("third = %v", got[2])
	}
}

func TestCommonParams(t *testing.T) {
	common := []probe.Param{{Name: "pageNo", Value: "1"}, {Name: "numOfRows", Value: "1"}}
	got, err := FromLines([]string{"getBasic02?numOfRows=10000"}, LoadOptions{CommonParams: common})
	if err != nil {
		t.Fatal(err)
	}
	c := got[0]
	if len(c.Params) != 2 {
		t.Fatalf("params = %v", c.Params)
	}
	if v, _ := c.ParamValue("numOfRows"); v != "10000" {
		t.Errorf("candidate value should win over common param, got %q", v)
	}
	if v, _ := c.ParamValue("pageNo"); v != "1" {
		t.Errorf("pageNo = %q", v)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		wantPath string
		params   int
		explicit bool
		wantErr  bool
	}{
		{line: "getBs02", wantPath: "getBs02"},
		{line: "/dgBusArriveService/getBusArriveInfoList?stopId=00192&pageNo=1", wantPath: "/dgBusArriveService/getBusArriveInfoList", params: 2},
		{line: "getPos02?routeId=1 raw", wantPath: "getPos02", params: 1, explicit: true},
		{line: "getPos02?flag", wantPath: "getPos02", params: 1},
		{line: "getPos02 twice", wantErr: true},
		{line: "a b c", wantErr: true},
		{line: "bad?x=%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, explicit, err := ParseLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Path != tt.wantPath || len(c.Params) != tt.params || explicit != tt.explicit {
				t.Errorf("ParseLine(%q) = %v explicit=%v", tt.line, c, explicit)
			}
		})
	}
}
