package batch_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"idmerge/internal/batch"
	"idmerge/internal/match"
)

func input(path string) batch.RawInput {
	return batch.RawInput{Path: path, Data: []byte(path)}
}

func img(path string) match.Image {
	return match.Image{Ref: path, Data: []byte(path)}
}

func TestGroupDeclared(t *testing.T) {
	declared := []batch.DeclaredUnit{
		{Name: "alice", FileNames: []string{"IMG_1.JPG", "img_2.jpg"}},
		{Name: "bob", FileNames: []string{"scan.png"}},
	}
	inputs := []batch.RawInput{
		input("img_1.jpg"),
		input("uploads/IMG_2.JPG"),
		input("scan.png"),
		input("stray.png"),
	}

	got := batch.Group(declared, inputs)
	want := []batch.Unit{
		{Name: "alice", Declared: true, Images: []match.Image{img("img_1.jpg"), img("uploads/IMG_2.JPG")}},
		{Name: "bob", Declared: true, Images: []match.Image{img("scan.png")}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupDeclaredClaimsEachInputOnce(t *testing.T) {
	declared := []batch.DeclaredUnit{
		{Name: "first", FileNames: []string{"shared.jpg"}},
		{Name: "second", FileNames: []string{"shared.jpg"}},
	}
	inputs := []batch.RawInput{input("shared.jpg")}

	got := batch.Group(declared, inputs)
	if len(got) != 2 {
		t.Fatalf("units = %d, want 2", len(got))
	}
	if len(got[0].Images) != 1 {
		t.Errorf("first unit images = %d, want 1", len(got[0].Images))
	}
	if len(got[1].Images) != 0 {
		t.Errorf("second unit images = %d, want 0 (input already claimed)", len(got[1].Images))
	}
}

func TestGroupDeclaredKeepsUnmatchedUnit(t *testing.T) {
	declared := []batch.DeclaredUnit{{Name: "ghost", FileNames: []string{"nope.jpg"}}}
	got := batch.Group(declared, []batch.RawInput{input("other.jpg")})
	want := []batch.Unit{{Name: "ghost", Declared: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByPath(t *testing.T) {
	inputs := []batch.RawInput{
		input("alice/1.jpg"),
		input(`bob\scan.png`),
		input("alice/2.jpg"),
		input("plain.jpg"),
	}

	got := batch.Group(nil, inputs)
	want := []batch.Unit{
		{Name: "alice", Images: []match.Image{img("alice/1.jpg"), img("alice/2.jpg")}},
		{Name: "bob", Images: []match.Image{img(`bob\scan.png`)}},
		{Name: "plain.jpg", Images: []match.Image{img("plain.jpg")}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByPathUsesFirstSeparatorOnly(t *testing.T) {
	got := batch.Group(nil, []batch.RawInput{input("a/b/c.jpg")})
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("units = %+v, want one unit named a", got)
	}
	if got[0].Images[0].Ref != "a/b/c.jpg" {
		t.Errorf("ref = %s, want full path preserved", got[0].Images[0].Ref)
	}
}
