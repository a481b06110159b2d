package nginx

import (
	"errors"
	"strings"
	"testing"
)

func TestEnsureMasterConfigInsertsSettings(t *testing.T) {
	fsh := newFakeFilesystem()
	fsh.files["/etc/nginx/nginx.conf"] = []byte("user www-data;\n\nhttp {\n    sendfile on;\n}\n")
	factory := &fakeCommandFactory{}
	svc := newTestService(fsh, factory)

	if err := svc.EnsureMasterConfig(); err != nil {
		t.Fatalf("expected patch to succeed, got %v", err)
	}

	patched := string(fsh.files["/etc/nginx/nginx.conf"])
	for _, want := range []string{
		"http {\n    # Include all enabled sites\n    include /etc/nginx/sites-enabled/*;",
		"types_hash_max_size 2048;",
		"types_hash_bucket_size 128;",
		"    sendfile on;",
	} {
		if !strings.Contains(patched, want) {
			t.Fatalf("patched config missing %q:\n%s", want, patched)
		}
	}
	if !strings.HasPrefix(patched, "user www-data;") {
		t.Fatalf("expected original head preserved:\n%s", patched)
	}
	if _, ok := fsh.files["/etc/nginx/nginx.conf.backup"]; !ok {
		t.Fatalf("expected a backup before patching")
	}
	if len(factory.calls) != 1 || factory.calls[0] != "nginx -t" {
		t.Fatalf("expected one validation run, got %v", factory.calls)
	}
}

func TestEnsureMasterConfigAlreadyCorrect(t *testing.T) {
	fsh := newFakeFilesystem()
	fsh.files["/etc/nginx/nginx.conf"] = []byte(strings.Join([]string{
		"http {",
		"    # Include all enabled sites",
		"    include /etc/nginx/sites-enabled/*;",
		"    types_hash_max_size 2048;",
		"    types_hash_bucket_size 128;",
		"}",
		"",
	}, "\n"))
	factory := &fakeCommandFactory{}
	svc := newTestService(fsh, factory)

	if err := svc.EnsureMasterConfig(); err != nil {
		t.Fatalf("expected clean pass, got %v", err)
	}
	if len(fsh.writes) != 0 {
		t.Fatalf("expected no writes, got %v", fsh.writes)
	}
	if len(factory.calls) != 0 {
		t.Fatalf("expected no validation run, got %v", factory.calls)
	}
}

func TestEnsureMasterConfigRestoresOnValidationFailure(t *testing.T) {
	original := "http {\n    sendfile on;\n}\n"
	fsh := newFakeFilesystem()
	fsh.files["/etc/nginx/nginx.conf"] = []byte(original)
	factory := &fakeCommandFactory{fail: map[string]error{"nginx -t": errors.New("exit status 1")}}
	svc := newTestService(fsh, factory)

	if err := svc.EnsureMasterConfig(); err == nil {
		t.Fatalf("expected validation failure")
	}
	if got := string(fsh.files["/etc/nginx/nginx.conf"]); got != original {
		t.Fatalf("expected original config restored, got:\n%s", got)
	}
}

func TestCommentDefaultServer(t *testing.T) {
	fsh := newFakeFilesystem()
	fsh.files["/etc/nginx/nginx.conf"] = []byte(strings.Join([]string{
		"user www-data;",
		"http {",
		"    sendfile on;",
		"    server {",
		"        listen 80;",
		"        location / {",
		"            return 200;",
		"        }",
		"    }",
		"    include /etc/nginx/sites-enabled/*;",
		"}",
		"",
	}, "\n"))
	factory := &fakeCommandFactory{}
	svc := newTestService(fsh, factory)

	modified, err := svc.CommentDefaultServer()
	if err != nil || !modified {
		t.Fatalf("expected modification, got modified=%v err=%v", modified, err)
	}

	patched := string(fsh.files["/etc/nginx/nginx.conf"])
	for _, want := range []string{
		"#    server {",
		"#        listen 80;",
		"#        location / {",
		"#    }",
	} {
		if !strings.Contains(patched, want) {
			t.Fatalf("patched config missing %q:\n%s", want, patched)
		}
	}
	if !strings.Contains(patched, "\n    sendfile on;\n") {
		t.Fatalf("expected lines before the server block untouched:\n%s", patched)
	}
	if !strings.Contains(patched, "\n    include /etc/nginx/sites-enabled/*;\n") {
		t.Fatalf("expected lines after the server block untouched:\n%s", patched)
	}
	if _, ok := fsh.files["/etc/nginx/nginx.conf.backup-default"]; !ok {
		t.Fatalf("expected a backup before patching")
	}

	modified, err = svc.CommentDefaultServer()
	if err != nil || modified {
		t.Fatalf("expected second pass to be a no-op, got modified=%v err=%v", modified, err)
	}
}

func TestCommentDefaultServerRestoresOnValidationFailure(t *testing.T) {
	original := "http {\n    server {\n        listen 80;\n    }\n}\n"
	fsh := newFakeFilesystem()
	fsh.files["/etc/nginx/nginx.conf"] = []byte(original)
	factory := &fakeCommandFactory{fail: map[string]error{"nginx -t": errors.New("exit status 1")}}
	svc := newTestService(fsh, factory)

	if _, err := svc.CommentDefaultServer(); err == nil {
		t.Fatalf("expected validation failure")
	}
	if got := string(fsh.files["/etc/nginx/nginx.conf"]); got != original {
		t.Fatalf("expected original config restored, got:\n%s", got)
	}
}

func TestReloadRunsSystemctl(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := newTestService(newFakeFilesystem(), factory)

	if err := svc.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(factory.calls) != 1 || factory.calls[0] != "systemctl reload nginx" {
		t.Fatalf("unexpected calls %v", factory.calls)
	}
}
