package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/dsv/envelope"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage/localfs"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func forgedEnvelope(t *testing.T, data []byte) []byte {
	t.Helper()
	v, err := statevector.Vectorize(data)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	fp := v.Fingerprint()
	fp[0]++
	b, err := envelope.Marshal(statevector.New(v.Payload(), fp, v.Metadata()))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func TestDSV_PutGetInspectVerify(t *testing.T) {
	dir := t.TempDir()
	casDir := filepath.Join(dir, "cas")
	data := []byte("This is the integrity test string.")
	in := writeFile(t, dir, "in.txt", data)

	code, out, errOut := runCmd(t, "put", "-localfs-dir", casDir, "-data-type", "text/plain", in)
	if code != exitOK {
		t.Fatalf("put: %d %s", code, errOut)
	}
	id := strings.TrimSpace(out)

	code, out, errOut = runCmd(t, "get", "-localfs-dir", casDir, "-cid", id)
	if code != exitOK {
		t.Fatalf("get: %d %s", code, errOut)
	}
	if out != string(data) {
		t.Fatalf("get: got %q", out)
	}

	code, out, errOut = runCmd(t, "inspect", "-localfs-dir", casDir, "-cid", id)
	if code != exitOK {
		t.Fatalf("inspect: %d %s", code, errOut)
	}
	for _, want := range []string{"original_size\t34\n", "data_type\ttext/plain\n", "cid\t" + id + "\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect: missing %q in %q", want, out)
		}
	}

	code, out, _ = runCmd(t, "verify", "-localfs-dir", casDir, "-cid", id, in)
	if code != exitOK || strings.TrimSpace(out) != "ok" {
		t.Fatalf("verify: %d %q", code, out)
	}
	other := writeFile(t, dir, "other.txt", []byte("This is the integrity test string!"))
	code, out, _ = runCmd(t, "verify", "-localfs-dir", casDir, "-cid", id, other)
	if code != exitCorrupted || strings.TrimSpace(out) != "mismatch" {
		t.Fatalf("verify(other): %d %q", code, out)
	}

	code, _, errOut = runCmd(t, "patrol", "-localfs-dir", casDir)
	if code != exitOK {
		t.Fatalf("patrol: %d %s", code, errOut)
	}
}

func TestDSV_ForgedVectorIsReported(t *testing.T) {
	dir := t.TempDir()
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	id, err := cas.Put(forgedEnvelope(t, []byte("forged")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	code, out, _ := runCmd(t, "get", "-localfs-dir", dir, "-cid", id.String())
	if code != exitCorrupted || out != "" {
		t.Fatalf("get: %d %q", code, out)
	}

	code, out, _ = runCmd(t, "patrol", "-localfs-dir", dir, "-concurrency", "1")
	if code != exitCorrupted {
		t.Fatalf("patrol: %d", code)
	}
	if !strings.Contains(out, id.String()+"\tintegrity\t") {
		t.Fatalf("patrol output: %q", out)
	}
}

func TestDSV_PackUnpack(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("abc"), 1000)
	in := writeFile(t, dir, "in.bin", data)
	env := filepath.Join(dir, "in.dsv")
	back := filepath.Join(dir, "back.bin")

	if code, _, errOut := runCmd(t, "pack", "-out", env, in); code != exitOK {
		t.Fatalf("pack: %d %s", code, errOut)
	}
	if code, _, errOut := runCmd(t, "unpack", "-out", back, env); code != exitOK {
		t.Fatalf("unpack: %d %s", code, errOut)
	}
	got, err := os.ReadFile(back)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("unpack mismatch")
	}

	forged := writeFile(t, dir, "forged.dsv", forgedEnvelope(t, data))
	if code, out, _ := runCmd(t, "unpack", forged); code != exitCorrupted || out != "" {
		t.Fatalf("unpack(forged): %d %q", code, out)
	}
}

func TestDSV_Usage(t *testing.T) {
	if code, _, _ := runCmd(t); code != exitUsage {
		t.Fatalf("no args: %d", code)
	}
	if code, _, _ := runCmd(t, "bogus"); code != exitUsage {
		t.Fatalf("bogus: %d", code)
	}
	if code, _, _ := runCmd(t, "get", "-backend", "memory"); code != exitUsage {
		t.Fatalf("get without cid: %d", code)
	}
	if code, _, _ := runCmd(t, "get", "-backend", "memory", "-cid", "not-a-cid"); code != exitUsage {
		t.Fatalf("get with bad cid: %d", code)
	}
	code, out, _ := runCmd(t, "put", "-list-backends")
	if code != exitOK {
		t.Fatalf("list-backends: %d", code)
	}
	for _, name := range []string{"grpc", "localfs", "memory"} {
		if !strings.Contains(out, name) {
			t.Fatalf("list-backends: missing %q in %q", name, out)
		}
	}
}
