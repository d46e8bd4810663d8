package data

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/b0tShaman/gnn-go/gnn"
)

// CoraURL is the public archive of the Cora citation dataset: 2708 papers,
// 1433 binary bag-of-words features each, 7 classes, 5429 citation edges.
const CoraURL = "https://linqs-data.soe.ucsc.edu/public/lbc/cora.tgz"

// Planetoid-style split sizes. Fixture-sized inputs simply get smaller
// splits, the selection logic doesn't change.
const (
	coraTrainPerClass = 20
	coraValSize       = 500
	coraTestSize      = 1000
)

// Dataset is a single-graph node classification dataset: one fixed graph,
// a feature row per node, an integer class per node, and disjoint
// train/val/test masks.
type Dataset struct {
	Graph      gnn.Graph
	X          *gnn.Matrix
	Labels     []int
	ClassNames []string
	Split      gnn.Split
}

// LoadCora returns the Cora dataset, downloading and caching the archive
// under dir on first use.
func LoadCora(dir string) (*Dataset, error) {
	contentPath := filepath.Join(dir, "cora", "cora.content")
	citesPath := filepath.Join(dir, "cora", "cora.cites")

	if _, err := os.Stat(contentPath); err != nil {
		archive := filepath.Join(dir, "cora.tgz")
		if err := DownloadIfMissing(CoraURL, archive); err != nil {
			return nil, errors.Wrap(err, "cora")
		}
		if err := ExtractTarGz(archive, dir); err != nil {
			return nil, errors.Wrap(err, "cora")
		}
	}
	return ParseCora(contentPath, citesPath)
}

// ParseCora reads the two raw Cora files. cora.content lines are
// "<paper_id> <feature_0> ... <feature_n> <class_label>" and cora.cites lines
// are "<cited_id> <citing_id>"; citations become undirected edges.
func ParseCora(contentPath, citesPath string) (*Dataset, error) {
	content, err := os.Open(contentPath)
	if err != nil {
		return nil, errors.Wrap(err, "cora content")
	}
	defer content.Close()

	var (
		features   [][]float64
		labels     []int
		classIndex = map[string]int{}
		classNames []string
		nodeIndex  = map[string]int{}
	)

	scanner := bufio.NewScanner(content)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		id := fields[0]
		label := fields[len(fields)-1]
		raw := fields[1 : len(fields)-1]

		row := make([]float64, len(raw))
		for i, f := range raw {
			if f == "1" {
				row[i] = 1
			}
		}

		cls, ok := classIndex[label]
		if !ok {
			cls = len(classNames)
			classIndex[label] = cls
			classNames = append(classNames, label)
		}

		nodeIndex[id] = len(features)
		features = append(features, row)
		labels = append(labels, cls)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cora content")
	}
	if len(features) == 0 {
		return nil, errors.Errorf("cora content %q: no records", contentPath)
	}

	cites, err := os.Open(citesPath)
	if err != nil {
		return nil, errors.Wrap(err, "cora cites")
	}
	defer cites.Close()

	var edges [][2]int
	skipped := 0
	scanner = bufio.NewScanner(cites)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		cited, okA := nodeIndex[fields[0]]
		citing, okB := nodeIndex[fields[1]]
		if !okA || !okB {
			skipped++
			continue
		}
		edges = append(edges, [2]int{citing, cited})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cora cites")
	}
	if skipped > 0 {
		klog.Warningf("cora: skipped %d citations referencing unknown papers", skipped)
	}

	ds := &Dataset{
		Graph:      gnn.Graph{NumNodes: len(features), Edges: edges},
		X:          gnn.NewMatrixFromSlice(len(features), len(features[0]), gnn.Flatten(features)),
		Labels:     labels,
		ClassNames: classNames,
		Split:      planetoidSplit(labels, len(classNames)),
	}
	total := 0
	for _, d := range ds.Graph.Degrees() {
		total += d
	}
	klog.V(1).Infof("cora: %d nodes, %d edges, %d classes, mean degree %.2f",
		ds.Graph.NumNodes, len(edges), len(classNames), float64(total)/float64(ds.Graph.NumNodes))
	return ds, nil
}

// planetoidSplit builds the conventional split: the first trainPerClass nodes
// of every class train, the next valSize nodes validate, the next testSize
// nodes test. Remaining nodes belong to no mask.
func planetoidSplit(labels []int, numClasses int) gnn.Split {
	n := len(labels)
	split := gnn.Split{
		Train: make([]bool, n),
		Val:   make([]bool, n),
		Test:  make([]bool, n),
	}

	perClass := make([]int, numClasses)
	for i, cls := range labels {
		if perClass[cls] < coraTrainPerClass {
			split.Train[i] = true
			perClass[cls]++
		}
	}

	valCount, testCount := 0, 0
	for i := 0; i < n; i++ {
		if split.Train[i] {
			continue
		}
		if valCount < coraValSize {
			split.Val[i] = true
			valCount++
		} else if testCount < coraTestSize {
			split.Test[i] = true
			testCount++
		}
	}
	return split
}
