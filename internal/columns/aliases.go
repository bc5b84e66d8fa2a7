package columns

import (
	"fmt"
	"os"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"gopkg.in/yaml.v3"
)

// FieldAliases lists the header spellings accepted for one logical field.
type FieldAliases struct {
	Field   string   `yaml:"field"`
	Aliases []string `yaml:"aliases"`
}

// AliasTable is resolved in order: within a matching stage, earlier fields
// claim headers first, so more specific fields are listed before generic ones.
type AliasTable []FieldAliases

// RequiredFields must resolve for an upload to be accepted.
var RequiredFields = []string{models.FieldOrderID, models.FieldWorkOrder}

var defaultAliasTable = AliasTable{
	{Field: models.FieldOrderID, Aliases: []string{"order_id", "order id", "ao", "sc order no", "order no", "no order", "track id"}},
	{Field: models.FieldWorkOrder, Aliases: []string{"workorder", "work order", "wo", "wonum", "no wo"}},
	{Field: models.FieldBookingDate, Aliases: []string{"booking date", "tanggal booking", "tgl booking", "manja date", "tgl manja"}},
	{Field: models.FieldStatusDate, Aliases: []string{"status date", "tanggal status", "tgl status"}},
	{Field: models.FieldDateModified, Aliases: []string{"date modified", "last update", "tgl update", "modified"}},
	{Field: models.FieldUpdateLapangan, Aliases: []string{"update lapangan", "update lap", "field update", "keterangan lapangan"}},
	{Field: models.FieldDateCreated, Aliases: []string{"date created", "date", "tanggal", "created date", "tgl order", "order date"}},
	{Field: models.FieldChannel, Aliases: []string{"channel", "chanel", "sales channel"}},
	{Field: models.FieldServiceArea, Aliases: []string{"service area", "hsa", "area"}},
	{Field: models.FieldBranch, Aliases: []string{"branch", "cabang", "datel"}},
	{Field: models.FieldSymptom, Aliases: []string{"symptom", "gejala", "kendala"}},
	{Field: models.FieldEscalation, Aliases: []string{"tinjut", "tindak lanjut", "escalation", "eskalasi"}},
	{Field: models.FieldStatusBima, Aliases: []string{"status bima", "status"}},
	{Field: models.FieldCustomerName, Aliases: []string{"customer name", "nama pelanggan", "customer", "pelanggan"}},
	{Field: models.FieldAddress, Aliases: []string{"address", "alamat", "alamat instalasi"}},
	{Field: models.FieldContactPhone, Aliases: []string{"contact phone", "no hp", "phone", "telepon"}},
	{Field: models.FieldSTO, Aliases: []string{"sto"}},
	{Field: models.FieldWitel, Aliases: []string{"witel"}},
	{Field: models.FieldServiceNo, Aliases: []string{"service no", "no internet", "nd", "service number"}},
	{Field: models.FieldPackageName, Aliases: []string{"package name", "paket", "package", "produk"}},
	{Field: models.FieldTechnician, Aliases: []string{"technician", "teknisi", "nama teknisi"}},
	{Field: models.FieldLatitude, Aliases: []string{"latitude", "lat"}},
	{Field: models.FieldLongitude, Aliases: []string{"longitude", "long", "lng", "lon"}},
}

// DefaultAliasTable returns a copy of the built-in table.
func DefaultAliasTable() AliasTable {
	out := make(AliasTable, len(defaultAliasTable))
	for i, f := range defaultAliasTable {
		out[i] = FieldAliases{Field: f.Field, Aliases: append([]string(nil), f.Aliases...)}
	}
	return out
}

// LoadAliasTable reads a YAML alias table of the form
//
//	fields:
//	  - field: order_id
//	    aliases: [ao, "order id"]
//
// An empty path returns the default table.
func LoadAliasTable(path string) (AliasTable, error) {
	if path == "" {
		return DefaultAliasTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias table %s: %w", path, err)
	}

	var doc struct {
		Fields AliasTable `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse alias table %s: %w", path, err)
	}

	if err := doc.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alias table %s: %w", path, err)
	}
	return doc.Fields, nil
}

// Validate checks that every field is named once, has aliases, and that the
// required fields are present.
func (t AliasTable) Validate() error {
	seen := make(map[string]bool, len(t))
	for _, f := range t {
		if f.Field == "" {
			return fmt.Errorf("entry with empty field name")
		}
		if seen[f.Field] {
			return fmt.Errorf("field %q listed twice", f.Field)
		}
		if len(f.Aliases) == 0 {
			return fmt.Errorf("field %q has no aliases", f.Field)
		}
		seen[f.Field] = true
	}
	for _, req := range RequiredFields {
		if !seen[req] {
			return fmt.Errorf("required field %q missing", req)
		}
	}
	return nil
}

func (t AliasTable) Fields() []string {
	out := make([]string, len(t))
	for i, f := range t {
		out[i] = f.Field
	}
	return out
}
