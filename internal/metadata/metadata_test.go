package metadata

import (
	"errors"
	"testing"
)

func TestParsePreservesOrderAndKinds(t *testing.T) {
	md, err := Parse([]byte(`
title: Getting started
ms.date: 2024-01-02
tags: [a, b, {nested: x}]
draft: false
count: 3
author:
  name: someone
empty:
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantKeys := []string{"title", "ms.date", "tags", "draft", "count", "author", "empty"}
	if len(md) != len(wantKeys) {
		t.Fatalf("got %d entries, want %d", len(md), len(wantKeys))
	}
	for i, k := range wantKeys {
		if md[i].Key != k {
			t.Fatalf("entry %d key = %q, want %q", i, md[i].Key, k)
		}
	}

	if v, _ := md.Get("ms.date"); v.Kind != Scalar || v.Text != "2024-01-02" {
		t.Fatalf("unexpected ms.date: %+v", v)
	}
	if v, _ := md.Get("tags"); v.Kind != Array || len(v.Items) != 3 || v.Items[2].Kind != Object {
		t.Fatalf("unexpected tags: %+v", v)
	}
	if v, _ := md.Get("draft"); v.Kind != Bool || v.String() != "false" {
		t.Fatalf("unexpected draft: %+v", v)
	}
	if v, _ := md.Get("author"); v.Kind != Object || v.Fields.GetString("name") != "someone" {
		t.Fatalf("unexpected author: %+v", v)
	}
	if v, _ := md.Get("empty"); v.Kind != Null {
		t.Fatalf("unexpected empty: %+v", v)
	}
}

func TestParseJSON(t *testing.T) {
	md, err := Parse([]byte(`{"z": 1, "a": true, "list": ["x", 2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if md[0].Key != "z" || md[1].Key != "a" || md[2].Key != "list" {
		t.Fatalf("JSON key order not preserved: %+v", md)
	}
	if md.GetString("a") != "true" || md.GetString("z") != "1" {
		t.Fatalf("unexpected values: %+v", md)
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	if _, err := Parse([]byte(`[1, 2]`)); !errors.Is(err, ErrNotMapping) {
		t.Fatalf("expected ErrNotMapping, got %v", err)
	}
	md, err := Parse(nil)
	if err != nil || len(md) != 0 {
		t.Fatalf("empty input should give empty metadata, got %v %v", md, err)
	}
}

func TestMerge(t *testing.T) {
	global := Metadata{
		{Key: "site", Value: Value{Kind: Scalar, Text: "docs"}},
		{Key: "author", Value: Value{Kind: Scalar, Text: "team"}},
	}
	file := Metadata{
		{Key: "title", Value: Value{Kind: Scalar, Text: "T"}},
		{Key: "author", Value: Value{Kind: Scalar, Text: "me"}},
	}
	got := global.Merge(file)
	if len(got) != 3 || got[0].Key != "site" || got[1].Key != "author" || got[2].Key != "title" {
		t.Fatalf("unexpected merge order: %+v", got)
	}
	if got.GetString("author") != "me" {
		t.Fatalf("file metadata should win, got %q", got.GetString("author"))
	}
	if global.GetString("author") != "team" {
		t.Fatalf("Merge must not modify its receiver")
	}
}

func TestSplitFrontMatter(t *testing.T) {
	md, body, err := SplitFrontMatter("---\ntitle: Hello\nuid: a.b\n---\n# Hello\n")
	if err != nil {
		t.Fatal(err)
	}
	if md.GetString("uid") != "a.b" || md.GetString("title") != "Hello" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if body != "# Hello\n" {
		t.Fatalf("unexpected body: %q", body)
	}

	md, body, err = SplitFrontMatter("# No front matter\n")
	if err != nil || len(md) != 0 || body != "# No front matter\n" {
		t.Fatalf("content without front matter should pass through")
	}

	_, body, err = SplitFrontMatter("---\ntitle: open\n")
	if err != nil || body != "---\ntitle: open\n" {
		t.Fatalf("unterminated front matter should be body text")
	}

	if _, _, err := SplitFrontMatter("---\ntitle: [unclosed\n---\n"); err == nil {
		t.Fatalf("expected error for invalid YAML")
	}
}
