package pipeline

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/siherrmann/nexus/model"
)

// Dependency kinds found by ExtractDependencies.
const (
	DependencyImport          = "import"
	DependencyImportFrom      = "import_from"
	DependencyIncludes        = "includes"
	DependencyDefinesFunction = "defines_function"
	DependencyDefinesClass    = "defines_class"
	DependencyDefinesType     = "defines_type"
	DependencyUsesNamespace   = "uses_namespace"
	DependencyDefinesProperty = "defines_property"
	DependencyDefinesSignal   = "defines_signal"
	DependencyUsesComponent   = "uses_component"
)

// Dependency is a symbol a code file imports, defines or uses.
type Dependency struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// NodeID is the id of the dependency node in the knowledge graph.
func (d Dependency) NodeID() string {
	return d.Kind + "::" + d.Name
}

var (
	pythonImport     = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w.]+(?:[ \t]*,[ \t]*[\w.]+)*)`)
	pythonFromImport = regexp.MustCompile(`(?m)^[ \t]*from\s+([\w.]+)\s+import[ \t]+\(?([\w, \t]+)\)?`)
	pythonDef        = regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+(\w+)\s*\(`)
	pythonClass      = regexp.MustCompile(`(?m)^[ \t]*class[ \t]+(\w+)`)

	cppInclude   = regexp.MustCompile(`#include\s*[<"](.*?)[>"]`)
	cppClass     = regexp.MustCompile(`\bclass\s+(\w+)`)
	cppFunction  = regexp.MustCompile(`\b(?:void|int|bool|float|double|auto)\s+(\w+)\s*\(`)
	cppNamespace = regexp.MustCompile(`(\w+)::`)

	qmlImport    = regexp.MustCompile(`import\s+([\w.]+)`)
	qmlProperty  = regexp.MustCompile(`property\s+\w+\s+(\w+)`)
	qmlSignal    = regexp.MustCompile(`signal\s+(\w+)`)
	qmlComponent = regexp.MustCompile(`(?m)^[ \t]*(\w+)\s*\{`)
)

// ExtractDependencies analyzes the imports and definitions of a code file.
// Supported languages are python, go, cpp (also c, h, hpp) and qml, others
// yield no dependencies. Each (kind, name) pair is reported once, in order
// of first appearance.
func ExtractDependencies(path string, content string, language string) ([]Dependency, error) {
	var deps []Dependency
	var err error

	switch strings.ToLower(language) {
	case "python":
		deps = pythonDependencies(content)
	case "go":
		deps, err = goDependencies(path, content)
	case "cpp", "c", "h", "hpp":
		deps = cppDependencies(content)
	case "qml":
		deps = qmlDependencies(content)
	}
	if err != nil {
		return nil, err
	}

	return uniqueDependencies(deps), nil
}

func pythonDependencies(content string) []Dependency {
	var deps []Dependency
	for _, match := range pythonImport.FindAllStringSubmatch(content, -1) {
		for _, name := range strings.Split(match[1], ",") {
			deps = append(deps, Dependency{DependencyImport, strings.TrimSpace(name)})
		}
	}
	for _, match := range pythonFromImport.FindAllStringSubmatch(content, -1) {
		for _, name := range strings.Split(match[2], ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			deps = append(deps, Dependency{DependencyImportFrom, match[1] + "." + name})
		}
	}
	deps = append(deps, submatches(pythonDef, content, DependencyDefinesFunction)...)
	deps = append(deps, submatches(pythonClass, content, DependencyDefinesClass)...)
	return deps
}

// goDependencies parses the file with go/parser, so broken files are an error.
func goDependencies(path string, content string) ([]Dependency, error) {
	file, err := parser.ParseFile(token.NewFileSet(), path, content, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go file %s: %w", path, err)
	}

	var deps []Dependency
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err == nil {
			deps = append(deps, Dependency{DependencyImport, importPath})
		}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				name = receiverName(d.Recv.List[0].Type) + "." + name
			}
			deps = append(deps, Dependency{DependencyDefinesFunction, name})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				deps = append(deps, Dependency{DependencyDefinesType, spec.(*ast.TypeSpec).Name.Name})
			}
		}
	}
	return deps, nil
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	}
	return ""
}

func cppDependencies(content string) []Dependency {
	var deps []Dependency
	deps = append(deps, submatches(cppInclude, content, DependencyIncludes)...)
	deps = append(deps, submatches(cppClass, content, DependencyDefinesClass)...)
	deps = append(deps, submatches(cppFunction, content, DependencyDefinesFunction)...)
	deps = append(deps, submatches(cppNamespace, content, DependencyUsesNamespace)...)
	return deps
}

func qmlDependencies(content string) []Dependency {
	var deps []Dependency
	deps = append(deps, submatches(qmlImport, content, DependencyImport)...)
	deps = append(deps, submatches(qmlProperty, content, DependencyDefinesProperty)...)
	deps = append(deps, submatches(qmlSignal, content, DependencyDefinesSignal)...)
	for _, dep := range submatches(qmlComponent, content, DependencyUsesComponent) {
		// QML components start with an upper case letter
		if unicode.IsUpper([]rune(dep.Name)[0]) {
			deps = append(deps, dep)
		}
	}
	return deps
}

func submatches(pattern *regexp.Regexp, content string, kind string) []Dependency {
	var deps []Dependency
	for _, match := range pattern.FindAllStringSubmatch(content, -1) {
		deps = append(deps, Dependency{Kind: kind, Name: match[1]})
	}
	return deps
}

func uniqueDependencies(deps []Dependency) []Dependency {
	seen := map[Dependency]bool{}
	unique := []Dependency{}
	for _, dep := range deps {
		if dep.Name == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		unique = append(unique, dep)
	}
	return unique
}

// CodeGraph builds the graph fragment of a code file: a document node for
// the file and one node per dependency, linked from the file with
// dependency edges of weight 1.
func CodeGraph(fileNodeID string, path string, content string, language string) (*Extraction, error) {
	deps, err := ExtractDependencies(path, content, language)
	if err != nil {
		return nil, err
	}

	extraction := &Extraction{
		Nodes: []*model.KnowledgeNode{{
			ID:      fileNodeID,
			Type:    model.NodeTypeDocument,
			Content: content,
			Metadata: model.Metadata{
				"file_path":  path,
				"language":   language,
				"line_count": strings.Count(content, "\n") + 1,
				"size":       len(content),
			},
		}},
	}

	for _, dep := range deps {
		extraction.Nodes = append(extraction.Nodes, &model.KnowledgeNode{
			ID:      dep.NodeID(),
			Type:    model.NodeType(dep.Kind),
			Content: dep.Name,
		})
		extraction.Edges = append(extraction.Edges, &model.KnowledgeEdge{
			Source:   fileNodeID,
			Target:   dep.NodeID(),
			Type:     model.EdgeTypeDependency,
			Weight:   1.0,
			Metadata: model.Metadata{"type": dep.Kind},
		})
	}

	return extraction, nil
}
