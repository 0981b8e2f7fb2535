package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
)

const systemTemplate = `You are a helpful customer support assistant for %[1]s that answers questions using only the provided context.
Follow these guidelines precisely:

1. Answer only based on the provided context.
2. Treat terms with the same meaning as equivalent when matching the question to the context (for example "refer a friend" and "referral program").
3. If the information is not in the context, explicitly state "I don't have information about this in %[2]s documentation" and suggest the user contact %[2]s customer support.
4. Never make up facts, prices, dates or policies.
5. Be concise and direct in your answers.
6. Include quantitative information (prices, durations, doses, limits) exactly as written in the context.
7. For any medical or health related question, end by recommending the user consult a qualified healthcare professional.
8. Do not repeat the same information multiple times.

Accuracy matters more than completeness.`

const humanTemplate = `Please answer the following question using only the provided context:

question: %s

context:
%s

If the context doesn't contain the information needed, acknowledge this clearly.`

const untitled = "untitled"

// Assembler turns retrieved chunks into the two part instruction sent to the generator.
type Assembler struct {
	brand    string
	owner    string
	maxChars int
}

func New(brand string, maxContextChars int) (*Assembler, error) {
	if maxContextChars <= 0 {
		return nil, ragErrors.InvalidArgument("max context chars must be positive, got %d", maxContextChars)
	}
	a := &Assembler{brand: brand, owner: brand + "'s", maxChars: maxContextChars}
	if brand == "" {
		a.brand, a.owner = "the company", "our"
	}
	return a, nil
}

func (a *Assembler) System() string {
	return fmt.Sprintf(systemTemplate, a.brand, a.owner)
}

// NoInformation is the fixed answer given when nothing relevant was retrieved.
func (a *Assembler) NoInformation() string {
	return fmt.Sprintf("I don't have information about this in %[1]s documentation. "+
		"Please contact %[1]s customer support and they will be happy to help.", a.owner)
}

// FormatContext renders results as numbered source blocks in the order given.
// Blocks are added until the next one would pass the character bound; the first
// block is always kept. It returns the rendered context and the results it used.
func (a *Assembler) FormatContext(results []commonModels.RetrievalResult) (string, []commonModels.RetrievalResult) {
	var (
		b    strings.Builder
		size int
	)
	used := make([]commonModels.RetrievalResult, 0, len(results))
	for i, r := range results {
		block := sourceBlock(i+1, r)
		n := utf8.RuneCountInString(block)
		if i > 0 {
			n++ // separator
		}
		if i > 0 && size+n > a.maxChars {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(block)
		size += n
		used = append(used, r)
	}
	return b.String(), used
}

// Build assembles the system and per question instructions. Prior turns, when given,
// follow the question block. Retrieval never sees them.
func (a *Assembler) Build(question string, results []commonModels.RetrievalResult, history []commonModels.ChatTurn) (llm.Prompt, []commonModels.RetrievalResult) {
	ctxText, used := a.FormatContext(results)
	user := fmt.Sprintf(humanTemplate, question, ctxText)
	if h := FormatHistory(history); h != "" {
		user += "\n\nconversation so far:\n" + h
	}
	return llm.Prompt{System: a.System(), User: user}, used
}

func FormatHistory(history []commonModels.ChatTurn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		role := turn.Role
		if role == "" {
			role = commonModels.RoleUser
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

func sourceBlock(i int, r commonModels.RetrievalResult) string {
	title := r.Metadata.Title
	if title == "" {
		title = untitled
	}
	return fmt.Sprintf("source %d: %s\n%s\n", i, title, r.Content)
}
