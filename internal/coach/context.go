package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/musclelog/server/internal/domain"
)

// DefaultLocale is used when neither the request nor the profile names one.
const DefaultLocale = "en"

// localeFor resolves the reply language: explicit UI locale wins over the
// stored preference, which wins over the default.
func localeFor(req Request, profile *domain.Profile) string {
	if req.Language != "" {
		return req.Language
	}
	if profile != nil && profile.Locale != "" {
		return profile.Locale
	}
	return DefaultLocale
}

// mealGuidance renders the time-windowed meal-type heuristic. It is guidance
// for the model, not a code-enforced rule.
func mealGuidance(now time.Time) string {
	hour := now.Hour()
	var bias string
	switch {
	case hour >= 4 && hour < 11:
		bias = "breakfast"
	case hour >= 11 && hour < 16:
		bias = "lunch"
	default:
		bias = "dinner"
	}
	return fmt.Sprintf(`MEAL TYPE INFERENCE:
- Current local time is %s (hour %d). When the user does not name a meal, lean toward "%s".
- A large or heavy meal (full plates, main dishes) is NEVER a "snack" regardless of the hour.
- Reserve "snack" for genuinely small items (a fruit, a protein bar, a handful of nuts).`,
		now.Format("15:04"), hour, bias)
}

// profileFacts renders the profile as key facts for the system block.
func profileFacts(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.DisplayName != "" {
		parts = append(parts, "Name: "+p.DisplayName)
	}
	if p.Gender != "" {
		parts = append(parts, "Gender: "+p.Gender)
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.HeightCm > 0 {
		parts = append(parts, fmt.Sprintf("Height: %.0f cm", p.HeightCm))
	}
	if p.WeightKg > 0 {
		parts = append(parts, fmt.Sprintf("Weight: %.1f kg", p.WeightKg))
	}
	if len(parts) == 0 {
		return ""
	}
	return `USER PROFILE:
` + strings.Join(parts, " | ") + `
Use this to personalize advice: adjust calorie guidance to gender and weight,
consider age for intensity, use height/weight for BMI-related advice, and
address the user by name when known.`
}

// systemPrompt assembles the instruction block that always leads the prompt
// sequence for the decision call.
func systemPrompt(req Request, profile *domain.Profile) string {
	var b strings.Builder

	if facts := profileFacts(profile); facts != "" {
		b.WriteString(facts)
		b.WriteString("\n\n")
	}

	b.WriteString(`You are Coach Hazzem, a high-energy personal fitness coach.

MANDATORY LOGGING PROTOCOL:
1. TOOL FIRST: if the user reports workout or food data ("I did 10 pushups",
   "I ate pizza"), you MUST call a tool. Never claim something was saved
   unless you actually invoked the tool.
2. DATA RULES:
   - Strength exercises (weights, machines): require weight + reps.
   - Bodyweight exercises (pushups, pullups): weight_lbs=0, reps only.
   - Cardio (treadmill, running, cycling): weight_lbs=0, reps = duration in
     minutes ("30 min treadmill" -> weight_lbs 0, reps 30).
   - If data is missing, ASK before logging.
3. Always record exercise names in English.
4. PLAUSIBILITY: if a reported quantity is physiologically implausible (an
   extreme weight, an impossible food amount), do NOT call a tool; ask a
   skeptical clarifying question instead.`)
	b.WriteString("\n\n")

	b.WriteString(mealGuidance(req.Now))
	b.WriteString("\n\n")

	if req.Pro {
		b.WriteString("You are running on the higher-capability model tier; give thorough, personalized coaching.\n")
		if profile != nil {
			if profile.NutritionGoal != "" {
				b.WriteString("Active nutrition goal: " + profile.NutritionGoal + "\n")
			}
			if profile.WeightGoalKg > 0 {
				fmt.Fprintf(&b, "Weight goal: %.1f kg\n", profile.WeightGoalKg)
			}
			if profile.CustomInstructions != "" {
				b.WriteString("User's standing instructions: " + profile.CustomInstructions + "\n")
			}
			if profile.PredictNutrients {
				b.WriteString("When the user omits macros for a food, estimate calories, protein, carbs and fat yourself and pass them to log_food.\n")
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString("You are running on the fast model tier; keep answers short and practical.\n\n")
	}

	fmt.Fprintf(&b, "Always reply in the user's language: %s.\n", localeFor(req, profile))
	fmt.Fprintf(&b, "The user's current time is %s.", req.Now.Format(time.RFC3339))

	return b.String()
}

// narrationPrompt is the system instruction for the second model call.
func narrationPrompt(req Request, profile *domain.Profile) string {
	return fmt.Sprintf(`You are Coach Hazzem, a high-energy personal fitness coach.
Check the "Data" JSON carefully.
- IF "success" is true and "logged" data is present: confirm specifically what was saved.
- IF "success" is missing or false: apologize and say you could not save it.
- IF some requested items are missing from "logged": apologize for the missing items.
Keep it brief and motivating. Always reply in the user's language: %s.`, localeFor(req, profile))
}
