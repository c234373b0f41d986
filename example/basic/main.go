package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/excerpter"
	"github.com/siherrmann/excerpter/config"
)

var sampleDocs = []string{
	`The 2009 flu pandemic was caused by a novel strain of the H1N1 influenza virus.
It was first detected in Mexico. Most cases were mild [1][2].`,
	`Coronavirus disease 2019 (COVID-19) is a contagious disease caused by the virus SARS-CoV-2.
The first known case was identified in Wuhan, China, in December 2019. The disease quickly spread worldwide.`,
	`Masks reduce the spread of respiratory droplets. Hand washing also helps to prevent infections.`,
}

func main() {
	cfg := config.Default()
	cfg.TopN = 2

	// Loads the default sentence embedding model on first use
	e, err := excerpter.NewExcerpter(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create excerpter: %v", err)
	}
	defer e.Close()

	question := "What causes COVID-19?"
	fmt.Printf("Question: %s\n\n", question)

	excerpts, err := e.ExcerptsFromDocs(context.Background(), question, sampleDocs)
	if err != nil {
		log.Fatalf("Failed to extract excerpts: %v", err)
	}

	for i, excerpt := range excerpts {
		fmt.Printf("%d. [doc %d] %s\n", i+1, excerpt.SourceIndex, excerpt.Text)
	}

	candidates, err := e.Answers(context.Background(), question, sampleDocs)
	if err != nil {
		log.Fatalf("Failed to score documents: %v", err)
	}

	fmt.Println("\nRaw answers:")
	for i, candidate := range candidates {
		fmt.Printf("  doc %d: %.3f %q\n", i, candidate.Score, candidate.Answer)
	}
}
