package agents

// Schemas follow the strict structured-output subset: every object closes additionalProperties
// and lists all of its keys in required. llm.LintSchema is run over each of them in tests.

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func lessonSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":              map[string]any{"type": "string"},
			"description":        map[string]any{"type": "string"},
			"estimatedMinutes":   map[string]any{"type": "integer"},
			"learningObjectives": stringArray(),
			"keyConcepts":        stringArray(),
			"prerequisites":      stringArray(),
		},
		"required":             []string{"title", "description", "estimatedMinutes", "learningObjectives", "keyConcepts", "prerequisites"},
		"additionalProperties": false,
	}
}

func courseStrategySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"course": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":              map[string]any{"type": "string"},
					"description":        map[string]any{"type": "string"},
					"estimatedHours":     map[string]any{"type": "number"},
					"learningObjectives": stringArray(),
					"prerequisites":      stringArray(),
				},
				"required":             []string{"title", "description", "estimatedHours", "learningObjectives", "prerequisites"},
				"additionalProperties": false,
			},
			"modules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":              map[string]any{"type": "string"},
						"description":        map[string]any{"type": "string"},
						"learningObjectives": stringArray(),
					},
					"required":             []string{"title", "description", "learningObjectives"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"course", "modules"},
		"additionalProperties": false,
	}
}

func moduleLessonsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lessons": map[string]any{
				"type":  "array",
				"items": lessonSchema(),
			},
		},
		"required":             []string{"lessons"},
		"additionalProperties": false,
	}
}

func flowValidationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overallScore": map[string]any{"type": "number"},
			"transitions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"fromLessonId":    map[string]any{"type": "string"},
						"toLessonId":      map[string]any{"type": "string"},
						"flowScore":       map[string]any{"type": "number"},
						"gaps":            stringArray(),
						"redundancies":    stringArray(),
						"recommendations": stringArray(),
					},
					"required":             []string{"fromLessonId", "toLessonId", "flowScore", "gaps", "redundancies", "recommendations"},
					"additionalProperties": false,
				},
			},
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{"gap", "redundancy", "prerequisite_missing", "difficulty_jump"},
						},
						"severity": map[string]any{
							"type": "string",
							"enum": []any{"low", "medium", "high"},
						},
						"description":     map[string]any{"type": "string"},
						"affectedLessons": stringArray(),
					},
					"required":             []string{"type", "severity", "description", "affectedLessons"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"overallScore", "transitions", "issues"},
		"additionalProperties": false,
	}
}

func refinementSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"moduleUpdates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"moduleId":           map[string]any{"type": "string"},
						"title":              map[string]any{"type": "string"},
						"description":        map[string]any{"type": "string"},
						"learningObjectives": stringArray(),
					},
					"required":             []string{"moduleId", "title", "description", "learningObjectives"},
					"additionalProperties": false,
				},
			},
			"lessonUpdates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"lessonId":           map[string]any{"type": "string"},
						"title":              map[string]any{"type": "string"},
						"description":        map[string]any{"type": "string"},
						"estimatedMinutes":   map[string]any{"type": "integer"},
						"learningObjectives": stringArray(),
						"keyConcepts":        stringArray(),
						"prerequisites":      stringArray(),
					},
					"required":             []string{"lessonId", "title", "description", "estimatedMinutes", "learningObjectives", "keyConcepts", "prerequisites"},
					"additionalProperties": false,
				},
			},
			"insertions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"moduleId":      map[string]any{"type": "string"},
						"afterLessonId": map[string]any{"type": "string"},
						"lesson":        lessonSchema(),
					},
					"required":             []string{"moduleId", "afterLessonId", "lesson"},
					"additionalProperties": false,
				},
			},
			"removals": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"lessonId": map[string]any{"type": "string"},
						"reason":   map[string]any{"type": "string"},
					},
					"required":             []string{"lessonId", "reason"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"summary", "moduleUpdates", "lessonUpdates", "insertions", "removals"},
		"additionalProperties": false,
	}
}

func lessonContentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
		},
		"required":             []string{"content"},
		"additionalProperties": false,
	}
}
