package s3path

import "testing"

func TestParsePathStyle(t *testing.T) {
	p, err := Parse("/b/k", "", DefaultValidator{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != Object || p.Bucket != "b" || p.Key != "k" {
		t.Fatalf("got %+v", p)
	}
}

func TestParsePathStyleBucketOnly(t *testing.T) {
	p, err := Parse("/mybucket", "", DefaultValidator{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != Bucket || p.Bucket != "mybucket" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseRoot(t *testing.T) {
	p, err := Parse("/", "", DefaultValidator{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != Root {
		t.Fatalf("got %+v", p)
	}
}

func TestParseVirtualHosted(t *testing.T) {
	p, err := Parse("/k", "mybucket", DefaultValidator{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != Object || p.Bucket != "mybucket" || p.Key != "k" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseVirtualHostedEmptyPathIsBucket(t *testing.T) {
	p, err := Parse("", "mybucket", DefaultValidator{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != Bucket {
		t.Fatalf("got %+v", p)
	}
}

func TestHasPrefixIsStringWise(t *testing.T) {
	if !HasPrefix("dir/subdir/file", "dir/sub") {
		t.Fatal("expected string-wise prefix match")
	}
}

func TestKeyTooLong(t *testing.T) {
	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := Parse("/b/"+string(long), "", DefaultValidator{})
	if err != ErrKeyTooLong {
		t.Fatalf("got %v, want ErrKeyTooLong", err)
	}
}

func TestParseCopySource(t *testing.T) {
	cs, err := ParseCopySource("/src-bucket/src%2Fkey.txt?versionId=v1")
	if err != nil {
		t.Fatalf("ParseCopySource: %v", err)
	}
	if cs.Bucket != "src-bucket" || cs.Key != "src/key.txt" || cs.VersionID != "v1" {
		t.Fatalf("got %+v", cs)
	}
}
