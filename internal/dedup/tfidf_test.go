package dedup

import "testing"

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips url", "check this out https://example.com/x now", "check this out now"},
		{"strips mention", "hello @alice how are you", "hello how are you"},
		{"lowercases", "BREAKING NEWS", "breaking news"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocess(tt.in); got != tt.want {
				t.Errorf("preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_IdenticalDocsAreOne(t *testing.T) {
	docs := []string{"ai triumphs in breaking news today", "ai triumphs in breaking news today"}
	matrix := similarityMatrix(docs)
	if matrix[0][1] < 0.999 {
		t.Errorf("identical documents should have similarity ~1, got %f", matrix[0][1])
	}
}

func TestCosineSimilarity_UnrelatedDocsAreLow(t *testing.T) {
	docs := []string{"ai triumphs in breaking news today", "weather is fine outside today"}
	matrix := similarityMatrix(docs)
	if matrix[0][1] > 0.5 {
		t.Errorf("unrelated documents should have low similarity, got %f", matrix[0][1])
	}
}

func TestSingleLinkageClusters_MergesAboveThreshold(t *testing.T) {
	docs := []string{
		"breaking ai wins today",
		"breaking ai wins today again",
		"weather is fine outside",
	}
	matrix := similarityMatrix(docs)
	clusters, minSims := singleLinkageClusters(matrix, 0.5)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0]) != 2 {
		t.Fatalf("expected cluster of size 2, got %d", len(clusters[0]))
	}
	if minSims[0] < 0.5 {
		t.Errorf("cluster min similarity should be >= threshold, got %f", minSims[0])
	}
}

func TestSingleLinkageClusters_NoneBelowThreshold(t *testing.T) {
	docs := []string{"breaking ai wins today", "weather is fine outside"}
	matrix := similarityMatrix(docs)
	clusters, _ := singleLinkageClusters(matrix, 0.85)

	if len(clusters) != 0 {
		t.Errorf("expected no clusters below threshold, got %d", len(clusters))
	}
}
