package proto

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrDuplicatePrototype повторное имя прототипа в каталоге
var ErrDuplicatePrototype = errors.New("prototype already registered")

// Catalog сервис поиска прототипов только для чтения
type Catalog interface {
	Region(ref Ref) (*RegionPrototype, bool)
	Area(ref Ref) (*AreaPrototype, bool)
	Cell(ref Ref) (*CellPrototype, bool)
	Entity(ref Ref) (*EntityPrototype, bool)
	Population(ref Ref) (*PopulationPrototype, bool)
}

// catalogFile формат YAML-файла каталога
type catalogFile struct {
	Regions     []*RegionPrototype     `yaml:"regions"`
	Areas       []*AreaPrototype       `yaml:"areas"`
	Cells       []*CellPrototype       `yaml:"cells"`
	Entities    []*EntityPrototype     `yaml:"entities"`
	Populations []*PopulationPrototype `yaml:"populations"`
}

// MemoryCatalog каталог в памяти. После загрузки не изменяется.
type MemoryCatalog struct {
	regions     map[Ref]*RegionPrototype
	areas       map[Ref]*AreaPrototype
	cells       map[Ref]*CellPrototype
	entities    map[Ref]*EntityPrototype
	populations map[Ref]*PopulationPrototype
}

// NewMemoryCatalog создает пустой каталог
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		regions:     make(map[Ref]*RegionPrototype),
		areas:       make(map[Ref]*AreaPrototype),
		cells:       make(map[Ref]*CellPrototype),
		entities:    make(map[Ref]*EntityPrototype),
		populations: make(map[Ref]*PopulationPrototype),
	}
}

// LoadCatalog читает каталог из YAML-файла
func LoadCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog разбирает каталог и проверяет ссылки между прототипами
func ParseCatalog(data []byte) (*MemoryCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора каталога: %w", err)
	}

	c := NewMemoryCatalog()
	for _, p := range file.Regions {
		if err := add(c.regions, p.Name, p); err != nil {
			return nil, err
		}
	}
	for _, p := range file.Areas {
		if err := add(c.areas, p.Name, p); err != nil {
			return nil, err
		}
	}
	for _, p := range file.Cells {
		if err := add(c.cells, p.Name, p); err != nil {
			return nil, err
		}
	}
	for _, p := range file.Entities {
		if err := add(c.entities, p.Name, p); err != nil {
			return nil, err
		}
	}
	for _, p := range file.Populations {
		if err := add(c.populations, p.Name, p); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func add[T any](m map[Ref]*T, name Ref, p *T) error {
	if !name.IsValid() {
		return fmt.Errorf("прототип без имени")
	}
	if _, exists := m[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePrototype, name)
	}
	m[name] = p
	return nil
}

// AddRegion регистрирует прототип региона
func (c *MemoryCatalog) AddRegion(p *RegionPrototype) error { return add(c.regions, p.Name, p) }

// AddArea регистрирует прототип области
func (c *MemoryCatalog) AddArea(p *AreaPrototype) error { return add(c.areas, p.Name, p) }

// AddCell регистрирует прототип ячейки
func (c *MemoryCatalog) AddCell(p *CellPrototype) error { return add(c.cells, p.Name, p) }

// AddEntity регистрирует прототип сущности
func (c *MemoryCatalog) AddEntity(p *EntityPrototype) error { return add(c.entities, p.Name, p) }

// AddPopulation регистрирует таблицу популяции
func (c *MemoryCatalog) AddPopulation(p *PopulationPrototype) error {
	return add(c.populations, p.Name, p)
}

func (c *MemoryCatalog) Region(ref Ref) (*RegionPrototype, bool) {
	p, ok := c.regions[ref]
	return p, ok
}

func (c *MemoryCatalog) Area(ref Ref) (*AreaPrototype, bool) {
	p, ok := c.areas[ref]
	return p, ok
}

func (c *MemoryCatalog) Cell(ref Ref) (*CellPrototype, bool) {
	p, ok := c.cells[ref]
	return p, ok
}

func (c *MemoryCatalog) Entity(ref Ref) (*EntityPrototype, bool) {
	p, ok := c.entities[ref]
	return p, ok
}

func (c *MemoryCatalog) Population(ref Ref) (*PopulationPrototype, bool) {
	p, ok := c.populations[ref]
	return p, ok
}

// RegionNames отсортированный список регионов каталога
func (c *MemoryCatalog) RegionNames() []Ref {
	names := make([]Ref, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Validate проверяет, что все ссылки указывают на существующие прототипы
func (c *MemoryCatalog) Validate() error {
	var errs []error
	check := func(owner Ref, ref Ref, exists bool, kind string) {
		if ref.IsValid() && !exists {
			errs = append(errs, fmt.Errorf("%s: неизвестный прототип %s %q", owner, kind, ref))
		}
	}

	for name, r := range c.regions {
		for _, e := range r.Generator.Areas {
			_, ok := c.areas[e.Area]
			check(name, e.Area, ok, "area")
		}
		for _, ref := range r.Generator.Sequence {
			_, ok := c.areas[ref]
			check(name, ref, ok, "area")
		}
		for _, m := range r.Missions {
			_, ok := c.areas[m.Area]
			check(name, m.Area, ok, "area")
			for _, pe := range m.Population {
				_, ok := c.entities[pe.Entity]
				check(name, pe.Entity, ok, "entity")
			}
		}
	}
	for name, a := range c.areas {
		_, ok := c.cells[a.Generator.Cell]
		check(name, a.Generator.Cell, ok, "cell")
		for _, ref := range a.Generator.CellSet {
			_, ok := c.cells[ref]
			check(name, ref, ok, "cell")
		}
		_, ok = c.populations[a.Population]
		check(name, a.Population, ok, "population")
		for _, sub := range a.SubAreas {
			_, ok := c.areas[sub.Area]
			check(name, sub.Area, ok, "area")
		}
	}
	for name, cell := range c.cells {
		for _, m := range cell.Markers {
			_, ok := c.entities[m.Entity]
			check(name, m.Entity, ok, "entity")
		}
	}
	for name, p := range c.populations {
		for _, pe := range p.Entries {
			_, ok := c.entities[pe.Entity]
			check(name, pe.Entity, ok, "entity")
		}
	}
	return errors.Join(errs...)
}
