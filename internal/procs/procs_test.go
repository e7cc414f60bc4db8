package procs

import "testing"

func TestBaseName(t *testing.T) {
	cases := []struct{ in, want string }{
		{`C:\Windows\explorer.exe`, "explorer.exe"},
		{`C:/Program Files/App/agent.exe`, "agent.exe"},
		{"svchost.exe", "svchost.exe"},
		{`\Device\HarddiskVolume3\x\y.exe`, "y.exe"},
	}
	for _, c := range cases {
		if got := BaseName(c.in); got != c.want {
			t.Errorf("BaseName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSameImage(t *testing.T) {
	if !SameImage("Explorer.EXE", "explorer") {
		t.Error("case and .exe suffix must be ignored")
	}
	if SameImage("explorer.exe", "iexplore.exe") {
		t.Error("different images must not match")
	}
}
