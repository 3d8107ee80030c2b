package handlers

import (
	"encoding/json"
	"net/http"
)

type schema = map[string]interface{}

func arrayOf(items schema) schema {
	return schema{"type": "array", "items": items}
}

func object(properties schema) schema {
	return schema{"type": "object", "properties": properties}
}

var (
	numberSchema         = schema{"type": "number"}
	nullableNumberSchema = schema{"type": "number", "nullable": true}
	integerSchema        = schema{"type": "integer"}
	stringSchema         = schema{"type": "string"}
	dateTimeSchema       = schema{"type": "string", "format": "date-time"}
)

// snapshotOperation documents a GET endpoint that returns one section of the latest snapshot
func snapshotOperation(summary, description string, data schema, params ...schema) schema {
	op := schema{
		"summary":     summary,
		"description": description,
		"responses": schema{
			"200": schema{
				"description": "Section of the latest analysis",
				"content": schema{
					"application/json": schema{
						"schema": object(schema{
							"run_id":      stringSchema,
							"finished_at": dateTimeSchema,
							"data":        data,
						}),
					},
				},
			},
			"404": schema{"description": "Section not produced by the latest analysis"},
			"503": schema{"description": "No analysis has completed yet"},
		},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return schema{"get": op}
}

var (
	summaryRecordSchema = object(schema{
		"key":      stringSchema,
		"category": schema{"type": "string", "enum": []string{"Nuclear", "Green", "Traditional"}},
		"metric":   numberSchema,
	})
	rankedValueSchema = object(schema{"entity": stringSchema, "value": numberSchema})
	warningSchema     = object(schema{
		"kind":    stringSchema,
		"source":  stringSchema,
		"message": stringSchema,
		"count":   integerSchema,
	})
	entityElectricitySchema = object(schema{
		"entity":           stringSchema,
		"year":             integerSchema,
		"fossil":           numberSchema,
		"nuclear":          numberSchema,
		"renewables":       numberSchema,
		"total":            numberSchema,
		"low_carbon_share": numberSchema,
	})
	mixShareSchema = object(schema{"source": stringSchema, "value": numberSchema, "share": numberSchema})
	yearParam      = schema{
		"name":        "year",
		"in":          "query",
		"description": "Only return this year",
		"required":    false,
		"schema":      integerSchema,
	}
	runSchema = object(schema{
		"run_id":          stringSchema,
		"started_at":      dateTimeSchema,
		"finished_at":     dateTimeSchema,
		"record_count":    integerSchema,
		"source_count":    integerSchema,
		"skipped_sources": integerSchema,
		"warning_count":   integerSchema,
	})
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Energy Analytics API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       "Energy Analytics API",
			"description": "Levelized cost of electricity comparison and supplementary energy datasets, served from the latest analysis run",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": schema{
			"/api/lcoe/categories": snapshotOperation(
				"Mean LCOE per category",
				"World average levelized cost per energy category",
				arrayOf(summaryRecordSchema),
			),
			"/api/lcoe/countries": snapshotOperation(
				"Mean LCOE per focus country and category",
				"Per-country comparison restricted to the focus selection",
				arrayOf(summaryRecordSchema),
				schema{
					"name":        "country",
					"in":          "query",
					"description": "Only return rows for this country",
					"required":    false,
					"schema":      stringSchema,
				},
			),
			"/api/lcoe/coverage": snapshotOperation(
				"Countries priced in every category",
				"Keys whose records span exactly the required number of categories",
				object(schema{"complete_keys": arrayOf(stringSchema), "count": integerSchema}),
			),
			"/api/lcoe/focus": snapshotOperation(
				"Focus selection",
				"Countries chosen for the per-country comparison and how they were chosen",
				object(schema{
					"keys":      arrayOf(stringSchema),
					"mode":      schema{"type": "string", "enum": []string{"ranked", "all_qualifying", "none"}},
					"requested": integerSchema,
					"activity":  arrayOf(rankedValueSchema),
				}),
			),
			"/api/sources": snapshotOperation(
				"Source reports and warnings",
				"What happened to every declared source during the latest run",
				object(schema{
					"sources":  arrayOf(schema{"type": "object"}),
					"warnings": arrayOf(warningSchema),
				}),
			),
			"/api/eu-prices/hourly": snapshotOperation(
				"Hourly EU day-ahead prices",
				"Mean green and conventional price per hour of day, with the spread",
				arrayOf(object(schema{
					"hour":         integerSchema,
					"green":        nullableNumberSchema,
					"conventional": nullableNumberSchema,
					"spread":       nullableNumberSchema,
				})),
			),
			"/api/eu-prices/gaps": snapshotOperation(
				"Green minus conventional price",
				"Per date and hour where both energy types were priced",
				arrayOf(object(schema{"date": dateTimeSchema, "hour": integerSchema, "gap": numberSchema})),
			),
			"/api/eu-prices/candles": snapshotOperation(
				"Hourly price candles",
				"Open, high, low and close per energy type and hour",
				arrayOf(object(schema{
					"green":  schema{"type": "boolean"},
					"bucket": dateTimeSchema,
					"open":   numberSchema,
					"high":   numberSchema,
					"low":    numberSchema,
					"close":  numberSchema,
				})),
			),
			"/api/mortality": snapshotOperation(
				"Death rate per TWh",
				"Energy sources ordered by deaths per TWh, lowest first",
				arrayOf(rankedValueSchema),
			),
			"/api/energy-mix/totals": snapshotOperation(
				"Primary energy totals",
				"Consumption per source over all years, and the first and last year mix",
				schema{"type": "object"},
			),
			"/api/energy-mix/series": snapshotOperation(
				"Fossil, renewable and nuclear series",
				"Yearly consumption grouped by family",
				arrayOf(object(schema{
					"year":       integerSchema,
					"fossil":     numberSchema,
					"renewables": numberSchema,
					"nuclear":    numberSchema,
				})),
			),
			"/api/energy-mix/renewables": snapshotOperation(
				"Renewable source growth",
				"Yearly consumption of each renewable source",
				arrayOf(object(schema{"year": integerSchema, "source": stringSchema, "value": numberSchema})),
			),
			"/api/energy-mix/frames": snapshotOperation(
				"Energy mix per year",
				"Share of every source except traditional biomass, one frame per year",
				arrayOf(object(schema{"year": integerSchema, "mix": arrayOf(mixShareSchema)})),
				yearParam,
			),
			"/api/sustainable/latest": snapshotOperation(
				"Latest-year electricity generation",
				"Generation split per entity for the most recent year, largest first",
				object(schema{"year": integerSchema, "entities": arrayOf(entityElectricitySchema)}),
			),
			"/api/sustainable/global": snapshotOperation(
				"Global electricity generation",
				"Generation split summed over all entities per year, with each source's percentage",
				arrayOf(object(schema{
					"year":           integerSchema,
					"fossil":         numberSchema,
					"nuclear":        numberSchema,
					"renewables":     numberSchema,
					"total":          numberSchema,
					"fossil_pct":     numberSchema,
					"nuclear_pct":    numberSchema,
					"renewables_pct": numberSchema,
				})),
			),
			"/api/sustainable/scatter": snapshotOperation(
				"Renewables against GDP",
				"Renewable primary energy share against GDP per capita, sized by CO2 emissions",
				arrayOf(object(schema{
					"entity":           stringSchema,
					"year":             integerSchema,
					"gdp_per_capita":   numberSchema,
					"renewables_share": numberSchema,
					"co2_kt":           numberSchema,
				})),
			),
			"/api/sustainable/adoption": snapshotOperation(
				"Renewable adoption against emissions",
				"Renewable share of final energy against CO2 emissions per entity and year",
				arrayOf(object(schema{
					"entity":                    stringSchema,
					"year":                      integerSchema,
					"renewable_share":           numberSchema,
					"co2_kt":                    numberSchema,
					"primary_energy_per_capita": numberSchema,
				})),
				yearParam,
			),
			"/api/sustainable/transitions": snapshotOperation(
				"Entity energy transitions",
				"Yearly generation split of the requested entities over 2000-2020",
				arrayOf(entityElectricitySchema),
				schema{
					"name":        "entity",
					"in":          "query",
					"description": "Entity to include; repeat or comma-separate. Defaults to Germany, France, United States and China",
					"required":    false,
					"schema":      stringSchema,
				},
			),
			"/api/sustainable/comparison": snapshotOperation(
				"Start and end of the transition window",
				"Generation split of one entity in 2000 and 2020",
				arrayOf(entityElectricitySchema),
				schema{
					"name":        "entity",
					"in":          "query",
					"description": "Entity to compare, defaults to France",
					"required":    false,
					"schema":      stringSchema,
				},
			),
			"/api/runs": schema{
				"get": schema{
					"summary":     "Persisted analysis runs",
					"description": "Run history, newest first. Requires persistence.",
					"parameters": []schema{
						{"name": "page", "in": "query", "required": false, "schema": schema{"type": "integer", "default": 1}},
						{"name": "limit", "in": "query", "required": false, "schema": schema{"type": "integer", "default": 20}},
					},
					"responses": schema{
						"200": schema{
							"description": "Successful response",
							"content": schema{
								"application/json": schema{
									"schema": object(schema{
										"data":        arrayOf(runSchema),
										"total":       integerSchema,
										"page":        integerSchema,
										"limit":       integerSchema,
										"total_pages": integerSchema,
									}),
								},
							},
						},
						"503": schema{"description": "Persistence is disabled"},
					},
				},
			},
			"/api/runs/latest": schema{
				"get": schema{
					"summary":     "Latest persisted run",
					"description": "Header and stored summary tables of the most recent persisted run",
					"responses": schema{
						"200": schema{
							"description": "Successful response",
							"content": schema{
								"application/json": schema{
									"schema": object(schema{
										"run":            runSchema,
										"category_means": arrayOf(summaryRecordSchema),
										"focus_means":    arrayOf(summaryRecordSchema),
										"focus_keys":     arrayOf(summaryRecordSchema),
									}),
								},
							},
						},
						"404": schema{"description": "No run has been persisted yet"},
						"503": schema{"description": "Persistence is disabled"},
					},
				},
			},
			"/api/analysis/refresh": schema{
				"post": schema{
					"summary":     "Run the full analysis",
					"description": "Reads every declared source and replaces the snapshot",
					"responses": schema{
						"200": schema{"description": "Run summary with warnings"},
						"500": schema{"description": "A mandatory source is missing or malformed"},
					},
				},
			},
			"/health": schema{
				"get": schema{
					"summary":     "Health check",
					"description": "Check if the API and its database are up",
					"responses": schema{
						"200": schema{"description": "API is healthy"},
						"503": schema{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": schema{
				"get": schema{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": schema{
						"200": schema{
							"description": "Prometheus metrics in text format",
							"content":     schema{"text/plain": schema{"schema": stringSchema}},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
