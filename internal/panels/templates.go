package panels

// DefaultTemplates holds one text/template per target section. Templates
// run with sprig's function map over the view built by buildView.
var DefaultTemplates = map[string]map[string]string{
	"inventory": {
		"items":    `{{- range .Inventory }}• {{ .Name | trunc 18 }}{{ if .Slot }} [{{ .Slot }}]{{ end }}{{ "\n" }}{{- else }}(empty){{ end -}}`,
		"gold":     `Gold: {{ .Gold }}`,
		"weight":   `Weight: {{ printf "%.1f" .Weight }} kg`,
		"equipped": `Equipped: {{ .EquippedSlots | join ", " | default "nothing" }}`,
	},
	"equipment": {
		"slots": `{{- range .EquippedSlots }}{{ . | title | printf "%-8s" }} {{ index $.EquippedNames . }}{{ "\n" }}{{- else }}No gear{{ end -}}`,
		"stats": `ATK {{ .Stats.Attack }}  DEF {{ .Stats.Defense }}`,
	},
	"playerInfo": {
		"stats": `HP {{ .Stats.Health }}/{{ .Stats.MaxHealth }} {{ repeat .HealthBar "█" }}`,
		"gold":  `Purse: {{ .Gold }}g`,
		"level": `{{ .Name }} · level {{ .Level }} ({{ .XP }}/{{ .XPToNext }} xp)`,
	},
	"party": {
		"members": `{{- range .Party }}{{ .Name }} the {{ .Role }} (lv {{ .Level }}){{ "\n" }}{{- else }}Travelling alone{{ end -}}`,
		"stats":   `Party size: {{ len .Party }}`,
	},
	"market": {
		"prices": `{{- range .Goods }}{{ printf "%-7s" . }} {{ index $.Prices . }}g{{ "\n" }}{{- end -}}`,
		"stock":  `{{- range .Goods }}{{ printf "%-7s" . }} x{{ index $.Stock . }}{{ "\n" }}{{- end -}}`,
	},
	"quests": {
		"list":    `{{- range .Quests }}{{ if .Done }}✓{{ else }}·{{ end }} {{ .Name }}{{ "\n" }}{{- else }}No quests{{ end -}}`,
		"tracker": `{{- with .ActiveQuests }}{{ with index . 0 }}{{ .Name }}: {{ .Progress }}/{{ .Goal }}{{ end }}{{ else }}Nothing tracked{{ end -}}`,
	},
}

// fallbackTemplate renders sections of targets without a template.
const fallbackTemplate = `{{ .Property | title }} refreshed`
