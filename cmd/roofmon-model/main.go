// Command roofmon-model inspects classifier model blobs and can write
// a brightness demo model that pairs with roofmon-simcam.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"roofmon/internal/classifier"
)

func main() {
	var (
		path      = flag.String("path", "", "Path to a model blob")
		demo      = flag.Bool("demo", false, "Write a brightness demo model to -path instead of inspecting")
		inputSize = flag.Int("input-size", 32, "Demo model input grid size")
		cutoff    = flag.Float64("cutoff", 100, "Demo model brightness cutoff (frames darker than this classify as open)")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	if *demo {
		m := classifier.DemoModel(*inputSize, *cutoff)
		m.Meta["created"] = time.Now().UTC().Format(time.RFC3339)
		if err := classifier.SaveModel(*path, m); err != nil {
			log.Fatalf("write model: %v", err)
		}
		fmt.Printf("wrote demo model to %s (input %dx%d, cutoff %.0f)\n",
			*path, *inputSize, *inputSize, *cutoff)
		return
	}

	m, err := classifier.LoadModel(*path)
	if err != nil {
		log.Fatalf("load model: %v", err)
	}
	dump(m)
}

func dump(m *classifier.Model) {
	min, max, sum := m.Weights[0], m.Weights[0], 0.0
	for _, w := range m.Weights {
		if w < min {
			min = w
		}
		if w > max {
			max = w
		}
		sum += w
	}

	fmt.Printf("version:    %d\n", m.Version)
	fmt.Printf("input size: %dx%d\n", m.InputSize, m.InputSize)
	fmt.Printf("weights:    %d (min %.6f, max %.6f, mean %.6f)\n",
		len(m.Weights), min, max, sum/float64(len(m.Weights)))
	fmt.Printf("bias:       %.6f\n", m.Bias)

	if len(m.Meta) == 0 {
		return
	}
	keys := make([]string, 0, len(m.Meta))
	for k := range m.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("meta %s: %s\n", k, m.Meta[k])
	}
}
