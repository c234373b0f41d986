package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/siherrmann/excerpter"
	"github.com/siherrmann/excerpter/config"
	"github.com/siherrmann/excerpter/core/retrieval"
	"github.com/siherrmann/excerpter/helper"
	"github.com/siherrmann/excerpter/model"
)

func samplePapers() []*model.Paper {
	published := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	return []*model.Paper{
		{
			Title:       "Transmission of SARS-CoV-2",
			Authors:     []string{"A. Author", "B. Author"},
			Abstract:    "We review how SARS-CoV-2 spreads between people.",
			Body:        "SARS-CoV-2 is transmitted mainly through respiratory droplets. Close contact increases the risk of infection. Aerosols may carry the virus over longer distances.",
			URL:         "https://example.org/transmission",
			PublishTime: &published,
			Metadata:    model.Metadata{"source": "advanced_example", "topic": "transmission"},
		},
		{
			Title:    "Face masks and community spread",
			Abstract: "Wearing face masks reduces community spread of respiratory viruses by blocking droplets.",
			Metadata: model.Metadata{"source": "advanced_example", "topic": "prevention"},
		},
	}
}

func main() {
	// Start a test PostgreSQL container for the paper store
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// The paper store reads its connection from the environment
	for key, value := range map[string]string{
		"DB_HOST":     "localhost",
		"DB_PORT":     dbPort,
		"DB_DATABASE": "database",
		"DB_USERNAME": "user",
		"DB_PASSWORD": "password",
	} {
		if err := os.Setenv(key, value); err != nil {
			log.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	cfg := config.Default()
	cfg.Database.Enabled = true
	cfg.SearchStrategy = retrieval.StrategyHybrid
	cfg.TopN = 3

	e, err := excerpter.NewExcerpter(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create excerpter: %v", err)
	}
	defer e.Close()

	ctx := context.Background()

	fmt.Println("Indexing papers...")
	stored, err := e.IndexPapers(ctx, samplePapers())
	if err != nil {
		log.Fatalf("Failed to index papers: %v", err)
	}
	fmt.Printf("Indexed %d papers\n", stored)

	question := "How does the virus spread?"
	fmt.Printf("\nQuestion: %s\n", question)

	hits, err := e.Retriever.Retrieve(ctx, question, cfg.SearchNDocs)
	if err != nil {
		log.Fatalf("Failed to search papers: %v", err)
	}
	fmt.Println("\nPapers found:")
	for _, hit := range hits {
		fmt.Printf("  %.4f %s\n", hit.Rank, hit.Paper.Title)
		for _, fragment := range hit.Fragments {
			fmt.Printf("         ...%s...\n", fragment)
		}
	}

	// Answers over the default web page followed by the papers found above
	excerpts, err := e.ExcerptsFromURL(ctx, question, "")
	if err != nil {
		log.Fatalf("Failed to extract excerpts: %v", err)
	}

	fmt.Println("\nExcerpts:")
	for i, excerpt := range excerpts {
		source := "web page"
		if excerpt.SourceIndex > 0 {
			source = fmt.Sprintf("paper %d", excerpt.SourceIndex)
		}
		fmt.Printf("%d. [%s] %s\n\n", i+1, source, excerpt.Text)
	}
}
