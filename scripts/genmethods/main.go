// Command genmethods generates the dialect capability table and the SQL
// method registry from registry.yaml.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/imports"
	"gopkg.in/yaml.v3"
)

const header = "Code generated by genmethods. DO NOT EDIT."

type registry struct {
	Dialects []dialectEntry `yaml:"dialects"`
	Methods  []methodEntry  `yaml:"methods"`
}

type dialectEntry struct {
	Name     string   `yaml:"name"`
	Ident    string   `yaml:"ident"`
	Features []string `yaml:"features"`
}

type methodEntry struct {
	Dialect  string `yaml:"dialect"`
	Receiver string `yaml:"receiver"`
	Op       string `yaml:"op"`
	Func     string `yaml:"func"`
	ArgC     int    `yaml:"argc"`
	Fold     string `yaml:"fold"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("genmethods: ")

	root := flag.String("root", ".", "module root directory")
	src := flag.String("registry", "scripts/genmethods/registry.yaml", "registry file, relative to root")
	flag.Parse()

	if err := run(*root, *src); err != nil {
		log.Fatal(err)
	}
}

func run(root, src string) error {
	data, err := os.ReadFile(filepath.Join(root, src))
	if err != nil {
		return err
	}
	var reg registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	if err := validate(reg); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		return emit(featureFile(reg), filepath.Join(root, "dialect", "feature_gen.go"))
	})
	g.Go(func() error {
		return emit(methodFile(reg), filepath.Join(root, "dialect", "sql", "method_gen.go"))
	})
	return g.Wait()
}

func validate(reg registry) error {
	if len(reg.Dialects) == 0 {
		return fmt.Errorf("no dialects")
	}
	names := make(map[string]bool, len(reg.Dialects))
	for _, d := range reg.Dialects {
		if d.Name == "" || d.Ident == "" {
			return fmt.Errorf("dialect %q: name and ident are required", d.Name)
		}
		if names[d.Name] {
			return fmt.Errorf("dialect %q: declared twice", d.Name)
		}
		names[d.Name] = true
	}
	for _, m := range reg.Methods {
		if m.Dialect != "*" && !names[m.Dialect] {
			return fmt.Errorf("method %q: unknown dialect %q", m.Op, m.Dialect)
		}
		if m.Receiver != "string" && m.Receiver != "numeric" {
			return fmt.Errorf("method %q: unknown receiver kind %q", m.Op, m.Receiver)
		}
		if m.Op == "" || m.Func == "" {
			return fmt.Errorf("method %q: op and func are required", m.Op)
		}
		if m.Fold != "" && !strings.HasPrefix(m.Fold, "strings.") {
			return fmt.Errorf("method %q: fold must name a strings function", m.Op)
		}
	}
	return nil
}

// featureFile builds dialect/feature_gen.go: one featureTable row per
// dialect, features sorted by name.
func featureFile(reg registry) *jen.File {
	f := jen.NewFile("dialect")
	f.HeaderComment(header)
	f.Comment("featureTable maps each dialect to its capability set.")
	f.Var().Id("featureTable").Op("=").Map(jen.String()).Id("Features").Values(jen.DictFunc(func(d jen.Dict) {
		for _, de := range reg.Dialects {
			feats := append([]string(nil), de.Features...)
			sort.Strings(feats)
			args := make([]jen.Code, len(feats))
			for i, feat := range feats {
				args[i] = jen.Id("Feature" + exportedName(feat))
			}
			d[jen.Id(de.Ident)] = jen.Id("NewFeatures").Call(args...)
		}
	}))
	return f
}

// methodFile builds dialect/sql/method_gen.go: RegisterMethod calls sorted
// by dialect, receiver and operation.
func methodFile(reg registry) *jen.File {
	methods := append([]methodEntry(nil), reg.Methods...)
	sort.Slice(methods, func(i, j int) bool {
		a, b := methods[i], methods[j]
		if a.Dialect != b.Dialect {
			return a.Dialect < b.Dialect
		}
		if a.Receiver != b.Receiver {
			return a.Receiver < b.Receiver
		}
		return a.Op < b.Op
	})

	f := jen.NewFile("sql")
	f.HeaderComment(header)
	f.Func().Id("init").Params().BlockFunc(func(grp *jen.Group) {
		for _, m := range methods {
			fields := []jen.Code{jen.Id("FuncName").Op(":").Lit(m.Func)}
			if m.ArgC > 0 {
				fields = append(fields, jen.Id("ArgC").Op(":").Lit(m.ArgC))
			}
			if m.Fold != "" {
				fields = append(fields, jen.Id("Fold").Op(":").Qual("strings", strings.TrimPrefix(m.Fold, "strings.")))
			}
			grp.Id("RegisterMethod").Call(
				jen.Lit(m.Dialect),
				jen.Lit(m.Receiver),
				jen.Lit(m.Op),
				jen.Id("Method").Values(fields...),
			)
		}
	})
	return f
}

// emit renders the file and writes it through the imports formatter, so the
// output matches what gofmt would produce.
func emit(f *jen.File, path string) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	out, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("format %s: %w", path, err)
	}
	return os.WriteFile(path, out, 0o644)
}

// initialisms maps name fragments that do not follow plain title casing.
var initialisms = map[string]string{
	"ansi":   "ANSI",
	"nowait": "NoWait",
	"sql":    "SQL",
}

var titler = cases.Title(language.English)

// exportedName converts a hyphenated registry name to an exported Go
// identifier: "select-for-update-nowait" becomes "SelectForUpdateNoWait".
func exportedName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "-") {
		if s, ok := initialisms[part]; ok {
			b.WriteString(s)
			continue
		}
		b.WriteString(titler.String(part))
	}
	return b.String()
}
