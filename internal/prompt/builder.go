// Package prompt builds the instructions sent to the chat model.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/paris/internal/engine"
	"github.com/kalambet/paris/internal/profile"
)

// TechDomains lists the domains the platform accepts. Users outside them are
// redirected politely by the model; code never filters on this list.
var TechDomains = []string{
	"tech", "technologie", "informatique", "développement", "programmation", "data science",
	"intelligence artificielle", "IA", "machine learning", "cybersécurité", "cloud computing",
	"réseaux", "devops", "ingénierie logicielle", "robotique", "IoT", "blockchain",
}

// Input is everything one turn contributes to the prompt.
type Input struct {
	Role     profile.Role
	Language profile.Language
	Known    profile.FieldSet
	History  []profile.Turn
	Message  string
}

// Build returns the full instruction text for one turn.
func Build(in Input) string {
	var sb strings.Builder

	sb.WriteString("Tu t'appelles Paris, un assistant IA qui recueille des informations de profil tout en gardant une conversation naturelle.\n\n")

	sb.WriteString("### Mission\n")
	missing := profile.Missing(in.Role, in.Known)
	if len(missing) > 0 {
		fmt.Fprintf(&sb, "1. Recueillir les informations suivantes : %s.\n", strings.Join(missing, ", "))
	} else {
		sb.WriteString("1. Toutes les informations sont déjà recueillies ; poursuis la conversation sans redemander quoi que ce soit.\n")
	}
	sb.WriteString("2. Garder une conversation fluide et engageante, en rebondissant sur la réponse de l'utilisateur avec une question connexe.\n")
	sb.WriteString("3. Adapter le ton à l'état d'esprit de l'utilisateur ; s'il exprime une émotion (frustration, ennui...), répondre avec empathie.\n")
	sb.WriteString("4. Ne jamais poser deux fois la même question ni redemander une information déjà recueillie.\n")
	fmt.Fprintf(&sb, "5. La plateforme est réservée aux professionnels et chercheurs de la tech (%s). ", strings.Join(TechDomains, ", "))
	sb.WriteString("Si l'utilisateur travaille hors de ces domaines, explique-lui gentiment que la plateforme ne lui est pas destinée.\n\n")

	sb.WriteString("### Contexte\n")
	fmt.Fprintf(&sb, "Rôle de l'utilisateur : %s\n", in.Role)
	fmt.Fprintf(&sb, "Champs du profil : %s\n", strings.Join(profile.RequiredFields(in.Role), ", "))
	fmt.Fprintf(&sb, "Langue : %s\n", in.Language)
	fmt.Fprintf(&sb, "Informations déjà recueillies : %s\n", marshal(knownOrEmpty(in.Known)))
	fmt.Fprintf(&sb, "Historique de la conversation : %s\n\n", marshal(historyOrEmpty(in.History)))

	sb.WriteString("### Message de l'utilisateur\n")
	sb.WriteString(in.Message)
	sb.WriteString("\n\n")

	sb.WriteString("### Format de sortie\n")
	sb.WriteString("1. Identifie dans le message les informations du profil qui manquent encore.\n")
	sb.WriteString("2. Place-les dans l'objet \"data\" (nom du champ -> valeur texte). N'y mets que des champs du profil.\n")
	fmt.Fprintf(&sb, "3. Rédige ta réponse dans \"response\", UNIQUEMENT en %s.\n", in.Language.Name())
	sb.WriteString("4. Retourne UNIQUEMENT un objet JSON avec exactement deux clés, sans texte autour :\n")
	sb.WriteString(`{"data": {"champ1": "valeur1"}, "response": "Ta réponse ici"}`)
	return sb.String()
}

// Greeting returns the prompt for a welcome message in lang.
func Greeting(lang profile.Language) string {
	return "Génère un message de bienvenue chaleureux et engageant pour un nouvel utilisateur qui arrive sur une plateforme " +
		"dédiée aux professionnels et chercheurs de la tech. Le message doit être naturel et amical, court et concis, " +
		"et inviter l'utilisateur à se présenter, à partager ses attentes ou à poser ses questions. " +
		fmt.Sprintf("Écris-le UNIQUEMENT en %s et ne renvoie que le message.", lang.Name())
}

// ResponseSchema is the JSON shape the model must produce for a turn.
func ResponseSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"data":     {Type: "object", Description: "Newly collected profile fields, field name to text value"},
			"response": {Type: "string", Description: "Reply to the user in the session language"},
		},
		Required: []string{"data", "response"},
	}
}

func knownOrEmpty(f profile.FieldSet) profile.FieldSet {
	if f == nil {
		return profile.FieldSet{}
	}
	return f
}

func historyOrEmpty(h []profile.Turn) []profile.Turn {
	if h == nil {
		return []profile.Turn{}
	}
	return h
}

// marshal encodes v as compact JSON without HTML escaping so quotes and
// accents reach the model untouched.
func marshal(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
