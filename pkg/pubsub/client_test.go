package pubsub

import "testing"

func TestSubscriptionResourceName(t *testing.T) {
	client := &Client{projectID: "project-123"}

	got := client.subscriptionResourceName("enriched-sub")
	want := "projects/project-123/subscriptions/enriched-sub"
	if got != want {
		t.Fatalf("unexpected resource name %q, want %q", got, want)
	}

	full := "projects/other/subscriptions/enriched-sub"
	if got := client.subscriptionResourceName(full); got != full {
		t.Fatalf("full resource name should pass through, got %q", got)
	}

	if got := client.subscriptionResourceName("  "); got != "" {
		t.Fatalf("blank name should resolve to empty, got %q", got)
	}
}

func TestTopicResourceName(t *testing.T) {
	client := &Client{projectID: "project-123"}

	got := client.topicResourceName("bad-rows")
	want := "projects/project-123/topics/bad-rows"
	if got != want {
		t.Fatalf("unexpected resource name %q, want %q", got, want)
	}

	orphan := &Client{}
	if got := orphan.topicResourceName("bad-rows"); got != "" {
		t.Fatalf("missing project should resolve to empty, got %q", got)
	}
}
