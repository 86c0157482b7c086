package prompts

import (
	"encoding/json"
	"sort"
)

// Schema types.
const (
	TypeObject = "object"
	TypeArray  = "array"
	TypeString = "string"
	TypeNumber = "number"
)

// Schema is a provider-neutral description of the response shape. Providers translate it into
// their own representation; MarshalJSON emits standard JSON Schema.
type Schema struct {
	Type        string
	Description string
	Nullable    bool
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
}

// PropertyNames returns the property names in a stable order.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON implements json.Marshaler using JSON Schema keywords.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if s.Nullable {
		out["type"] = []string{s.Type, "null"}
	} else {
		out["type"] = s.Type
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Type == TypeObject {
		props := map[string]*Schema{}
		for k, v := range s.Properties {
			props[k] = v
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}
	if s.Items != nil {
		out["items"] = s.Items
	}
	return json.Marshal(out)
}

func str() *Schema { return &Schema{Type: TypeString} }
func nullableStr() *Schema { return &Schema{Type: TypeString, Nullable: true} }
func num() *Schema { return &Schema{Type: TypeNumber} }
func arrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}
func object(required []string, props map[string]*Schema) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// ResponseSchema returns the fixed response contract of the analysis call.
func ResponseSchema() *Schema {
	return object(
		[]string{"ogrenci_bilgi", "exams_history", "konu_analizi", "executive_summary", "calisma_plani", "simulasyon", "topic_trends"},
		map[string]*Schema{
			"ogrenci_bilgi": object([]string{"ad_soyad"}, map[string]*Schema{
				"ad_soyad": nullableStr(),
				"sube":     nullableStr(),
				"numara":   nullableStr(),
			}),
			"exams_history": arrayOf(object(
				[]string{"sinav_adi", "tarih", "toplam_puan", "genel_yuzdelik", "ders_netleri"},
				map[string]*Schema{
					"sinav_adi":      nullableStr(),
					"tarih":          nullableStr(),
					"toplam_puan":    num(),
					"genel_yuzdelik": num(),
					"ders_netleri": arrayOf(object([]string{"ders", "net"}, map[string]*Schema{
						"ders": str(),
						"net":  num(),
					})),
				},
			)),
			"konu_analizi": arrayOf(object(
				[]string{"ders", "konu", "dogru", "yanlis", "bos", "basari_yuzdesi", "kayip_puan", "durum"},
				map[string]*Schema{
					"ders":           str(),
					"konu":           str(),
					"dogru":          num(),
					"yanlis":         num(),
					"bos":            num(),
					"basari_yuzdesi": num(),
					"kayip_puan":     num(),
					"durum":          str(),
				},
			)),
			"executive_summary": object(
				[]string{"mevcut_durum", "guclu_yonler", "zayif_yonler", "yks_tahmini_siralama"},
				map[string]*Schema{
					"mevcut_durum":         {Type: TypeString, Description: "HTML içerikli özet"},
					"guclu_yonler":         arrayOf(str()),
					"zayif_yonler":         arrayOf(str()),
					"yks_tahmini_siralama": num(),
				},
			),
			"calisma_plani": arrayOf(str()),
			"simulasyon": object(
				[]string{"senaryo", "hedef_yuzdelik", "hedef_puan", "puan_araligi", "gerekli_net_artisi", "gelisim_adimlari"},
				map[string]*Schema{
					"senaryo":            str(),
					"hedef_yuzdelik":     num(),
					"hedef_puan":         num(),
					"puan_araligi":       str(),
					"gerekli_net_artisi": str(),
					"gelisim_adimlari":   arrayOf(str()),
				},
			),
			"topic_trends": arrayOf(object([]string{"ders", "konu", "history"}, map[string]*Schema{
				"ders": str(),
				"konu": str(),
				"history": arrayOf(object([]string{"tarih", "basari_yuzdesi"}, map[string]*Schema{
					"tarih":          str(),
					"basari_yuzdesi": num(),
				})),
			})),
		},
	)
}
