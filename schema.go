package gridline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TableSchema is a YAML-friendly declarative table definition. Hosts keep the
// column layout for a device in a schema file and construct tables from it;
// the engine consumes the result opaquely.
type TableSchema struct {
	Table   SchemaTable    `json:"table" yaml:"table"`
	Columns []SchemaColumn `json:"columns" yaml:"columns"`
}

// SchemaTable holds the reference channel and sampling rate.
type SchemaTable struct {
	Reference    string  `json:"reference" yaml:"reference"`
	SamplingRate float64 `json:"samplingRate" yaml:"samplingRate"`
}

// SchemaColumn defines one output column. An empty channel declares a
// computed column. An omitted policy defaults to interpolated.
type SchemaColumn struct {
	Name    string         `json:"name" yaml:"name"`
	Channel string         `json:"channel,omitempty" yaml:"channel,omitempty"`
	Policy  string         `json:"policy,omitempty" yaml:"policy,omitempty"`
	Convert *SchemaConvert `json:"convert,omitempty" yaml:"convert,omitempty"`
}

// SchemaConvert declares a linear unit conversion (value*scale + offset).
type SchemaConvert struct {
	Scale  float64 `json:"scale" yaml:"scale"`
	Offset float64 `json:"offset" yaml:"offset"`
}

// ParseTableSchema parses and validates a YAML table schema.
func ParseTableSchema(data []byte) (*TableSchema, error) {
	var schema TableSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Validate checks the schema for construction errors.
func (s *TableSchema) Validate() error {
	if s.Table.Reference == "" {
		return fmt.Errorf("%w: table.reference is required", ErrInvalidConfig)
	}
	if s.Table.SamplingRate <= 0 {
		return fmt.Errorf("%w: table.samplingRate must be > 0, got %v", ErrInvalidConfig, s.Table.SamplingRate)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: at least one column required", ErrInvalidConfig)
	}
	for i, col := range s.Columns {
		if col.Name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidConfig, i)
		}
		if col.Policy != "" {
			if _, err := ParsePolicy(col.Policy); err != nil {
				return fmt.Errorf("column %q: %w", col.Name, err)
			}
		}
	}
	return nil
}

// Reference returns the reference channel id.
func (s *TableSchema) Reference() ChannelID {
	return ChannelID(s.Table.Reference)
}

// TableConfig returns a default configuration at the schema's sampling rate.
func (s *TableSchema) TableConfig() TableConfig {
	return DefaultTableConfig(s.Table.SamplingRate)
}

// ColumnSpecs converts the schema columns into ColumnSpecs.
func (s *TableSchema) ColumnSpecs() ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, len(s.Columns))
	for i, col := range s.Columns {
		policy := Interpolated
		if col.Policy != "" {
			p, err := ParsePolicy(col.Policy)
			if err != nil {
				return nil, err
			}
			policy = p
		}
		spec := ColumnSpec{
			Name:    col.Name,
			Channel: ChannelID(col.Channel),
			Policy:  policy,
		}
		if col.Convert != nil {
			spec.Convert = LinearConverter(col.Convert.Scale, col.Convert.Offset)
		}
		specs[i] = spec
	}
	return validateColumns(specs)
}

// NewTable constructs a VirtualTable over store from the schema.
func (s *TableSchema) NewTable(store *TelemetryStore, sink DiagSink) (*VirtualTable, error) {
	cols, err := s.ColumnSpecs()
	if err != nil {
		return nil, err
	}
	return NewVirtualTable(store, s.Reference(), s.TableConfig(), cols, sink)
}
