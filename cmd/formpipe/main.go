// formpipe is a command-line tool for digitizing filled-in intake forms.
//
// It runs a scanned form (PDF or image) through OCR and LLM parsing,
// producing structured JSON data, and can fill the extracted values back
// into a PDF: into the form's own AcroForm fields, or as a text overlay
// onto a blank template.
//
// Configuration:
//
// Providers and credentials come from a YAML configuration file:
//
//	ocr_provider: mistral
//	llm_provider: gemini
//	mistral:
//	  api_key: "..."
//	gemini:
//	  api_key: "..."
//
// API keys can also be supplied via MISTRAL_API_KEY, GEMINI_API_KEY,
// OPENAI_API_KEY and GOOGLE_APPLICATION_CREDENTIALS.
//
// Usage:
//
//	formpipe -config config.yml -source scan.pdf [options]
//
// Required flags:
//
//	-config string   Path to the YAML configuration file
//	-source string   Path to the scanned form (PDF or image)
//
// Output options (at least one required):
//
//	-data string     Path to save extracted fields as JSON
//	-text string     Path to save the raw OCR text
//	-output string   Path to save the filled PDF
//
// Processing options:
//
//	-template string Path to a blank PDF to fill instead of the source
//	-hints string    Comma-separated list of expected field names
//	-fast            Use the single-call document OCR pipeline
//	-debug           Enable debug logging
//
// Example:
//
//	formpipe -config config.yml -source scan.pdf -data fields.json -output filled.pdf
//	formpipe -config config.yml -source scan.jpg -template blank.pdf -output filled.pdf -fast
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/medintake/formpipe/pkg/config"
	"github.com/medintake/formpipe/pkg/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file (required)")
	sourcePath := flag.String("source", "", "Path to the scanned form, PDF or image (required)")
	templatePath := flag.String("template", "", "Path to a blank PDF template to fill instead of the source")

	dataPath := flag.String("data", "", "Path to save extracted fields as JSON")
	textPath := flag.String("text", "", "Path to save the raw OCR text")
	outputPath := flag.String("output", "", "Path to save the filled PDF")

	hintsFlag := flag.String("hints", "", "Comma-separated list of expected field names")
	fastMode := flag.Bool("fast", false, "Use the single-call document OCR pipeline")
	debugMode := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	if *configPath == "" || *sourcePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config and -source flags are required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *dataPath == "" && *textPath == "" && *outputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one output flag must be provided (-data, -text or -output)")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debugMode {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(log, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid config", err)
	}

	source, err := os.ReadFile(*sourcePath)
	if err != nil {
		fatal(log, "failed to read source document", err)
	}

	var template []byte
	if *templatePath != "" {
		template, err = os.ReadFile(*templatePath)
		if err != nil {
			fatal(log, "failed to read template PDF", err)
		}
	}

	hints := cfg.FieldHints
	if *hintsFlag != "" {
		hints = nil
		for _, h := range strings.Split(*hintsFlag, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hints = append(hints, h)
			}
		}
	}

	processor := pipeline.NewProcessor(log)
	ctx := context.Background()

	var (
		data     map[string]any
		rawText  string
		filled   []byte
		metadata map[string]any
	)

	if *fastMode {
		docOCR, err := cfg.DocumentOCR(log)
		if err != nil {
			fatal(log, "failed to build document ocr provider", err)
		}

		result, err := processor.ProcessFast(ctx, pipeline.FastRequest{
			Content:  source,
			Filename: *sourcePath,
			OCR:      docOCR,
			Template: template,
		})
		if err != nil {
			fatal(log, "pipeline failed", err)
		}

		data, rawText, filled, metadata = result.ExtractedData, result.RawText, result.FilledPDF, result.Metadata
		fmt.Printf("Processed %d pages, %d fields, confidence %.2f (%d ms)\n",
			result.PageCount, result.FieldCount, result.Confidence, result.ProcessingTimeMS)
	} else {
		ocr, err := cfg.OCR(log)
		if err != nil {
			fatal(log, "failed to build ocr provider", err)
		}
		parser, err := cfg.Parser(log)
		if err != nil {
			fatal(log, "failed to build llm provider", err)
		}

		req := pipeline.Request{
			Content:    source,
			Filename:   *sourcePath,
			OCR:        ocr,
			Parser:     parser,
			FieldHints: hints,
			Template:   template,
		}
		// The overlay fallback is optional; continue without it.
		if positions, err := cfg.PositionExtractor(log); err == nil {
			req.Positions = positions
		} else {
			log.Warn("overlay fallback unavailable", "error", err)
		}

		result, err := processor.Process(ctx, req)
		if err != nil {
			fatal(log, "pipeline failed", err)
		}

		data, rawText, filled, metadata = result.ExtractedData, result.RawText, result.FilledPDF, result.Metadata
		fmt.Printf("Extracted %d fields, overall confidence %.2f (%d ms)\n",
			len(result.ExtractedData), result.OverallConfidence(), result.ProcessingTimeMS)

		if low := result.LowConfidenceFields(0.7); len(low) > 0 {
			fmt.Println("Fields needing review:", strings.Join(low, ", "))
		}
	}

	if *dataPath != "" {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			fatal(log, "failed to encode extracted data", err)
		}
		if err := os.WriteFile(*dataPath, out, 0644); err != nil {
			fatal(log, "failed to write extracted data", err)
		}
		fmt.Println("Extracted data saved to:", *dataPath)
	}

	if *textPath != "" {
		if err := os.WriteFile(*textPath, []byte(rawText), 0644); err != nil {
			fatal(log, "failed to write OCR text", err)
		}
		fmt.Println("OCR text saved to:", *textPath)
	}

	if *outputPath != "" {
		if filled == nil {
			reason, _ := metadata["pdf_fill_error"].(string)
			if reason == "" {
				reason = "no PDF was filled"
			}
			fatal(log, "no filled PDF to save", fmt.Errorf("%s", reason))
		}
		if err := os.WriteFile(*outputPath, filled, 0644); err != nil {
			fatal(log, "failed to write filled PDF", err)
		}
		fmt.Println("Filled PDF saved to:", *outputPath)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
