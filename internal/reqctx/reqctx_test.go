// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import "testing"

func TestTruthinessTable(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{None, false},
		{NewBool(true), true},
		{NewBool(false), false},
		{NewNumber(0), false},
		{NewNumber(1), true},
		{NewString(""), false},
		{NewString("x"), true},
		{NewIP("127.0.0.1"), true},
		{NewList(nil), false},
		{NewList([]string{"a"}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestRequestFieldHeader(t *testing.T) {
	r := &Request{
		Headers:     map[string]string{"X-Api-Key": "secret"},
		HeaderOrder: []string{"X-Api-Key"},
	}
	v := r.Field(HeaderField("X-Api-Key"))
	if v.Kind != KindString || v.Str != "secret" {
		t.Fatalf("expected header value secret, got %+v", v)
	}

	missing := r.Field(HeaderField("Missing"))
	if missing.Kind != KindNone {
		t.Fatalf("expected None for missing header, got %+v", missing)
	}
}

func TestRegexDeviceDetectorMobile(t *testing.T) {
	d := NewRegexDeviceDetector()
	info := d.Detect("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile Safari/604.1")
	if !info.IsMobile {
		t.Fatal("expected iPhone UA to be classified mobile")
	}
	if info.OSName != "iOS" {
		t.Fatalf("expected iOS, got %q", info.OSName)
	}
}

func TestRegexDeviceDetectorBot(t *testing.T) {
	d := NewRegexDeviceDetector()
	info := d.Detect("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	if !info.IsBot {
		t.Fatal("expected Googlebot UA to be classified as a bot")
	}
}
