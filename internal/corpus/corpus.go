package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	logx "blastbot/pkg/logx"
)

type Category string

const (
	Raid     Category = "raid"
	Romantic Category = "romantic"
)

// Placeholder in a template is replaced by the raid target.
const Placeholder = "{target}"

var defaults = map[Category][]string{
	Raid:     {"{target} RAID DEFAULT MESSAGE"},
	Romantic: {"{target} SHAYARI DEFAULT MESSAGE"},
}

// Corpus holds the template lists. Every known category is non-empty at all
// times; a missing or empty file keeps the built-in defaults.
type Corpus struct {
	mu    sync.RWMutex
	files map[Category]string
	lists map[Category][]string

	log logx.Logger
}

// Load reads one file per category. Missing files are not an error.
func Load(files map[Category]string, log logx.Logger) (*Corpus, error) {
	c := &Corpus{files: map[Category]string{}, lists: map[Category][]string{}, log: log}
	for cat, def := range defaults {
		c.lists[cat] = def
	}
	for cat, path := range files {
		c.files[cat] = path
		if err := c.Reload(cat); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Reload re-reads the file of cat.
func (c *Corpus) Reload(cat Category) error {
	c.mu.RLock()
	path := c.files[cat]
	c.mu.RUnlock()
	if path == "" {
		return nil
	}

	lines, err := readLines(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(lines) == 0 {
		lines = defaults[cat]
		if len(lines) == 0 {
			lines = []string{Placeholder}
		}
		c.log.Warn("corpus file missing or empty; using defaults", logx.String("category", string(cat)), logx.String("path", path))
	} else {
		c.log.Info("corpus loaded", logx.String("category", string(cat)), logx.Int("templates", len(lines)))
	}
	c.lists[cat] = lines
	return nil
}

// Random returns a uniformly chosen template of cat.
func (c *Corpus) Random(cat Category) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l := c.lists[cat]
	if len(l) == 0 {
		return Placeholder
	}
	return l[rand.IntN(len(l))]
}

// Len reports how many templates cat currently holds.
func (c *Corpus) Len(cat Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists[cat])
}

// Format renders a template for target. Templates without a placeholder get
// the target prepended.
func Format(template, target string) string {
	if strings.Contains(template, Placeholder) {
		return strings.ReplaceAll(template, Placeholder, target)
	}
	return target + " " + template
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
