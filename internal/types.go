package internal

type DocumentKind string

const (
	KindLunchDinner    DocumentKind = "almuerzos_cenas"
	KindBreakfastSnack DocumentKind = "desayunos_meriendas"
	KindEquivalency    DocumentKind = "equivalencias"
	KindDetailedRecipe DocumentKind = "recetas_detalladas"
	KindUnknown        DocumentKind = "unknown"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusCompleted  ProcessingStatus = "completed"
	StatusError      ProcessingStatus = "error"
	StatusSkipped    ProcessingStatus = "skipped"
)

type IngredientType string

const (
	IngredientProtein      IngredientType = "protein"
	IngredientCarbohydrate IngredientType = "carbohydrate"
	IngredientVegetable    IngredientType = "vegetable"
	IngredientFruit        IngredientType = "fruit"
	IngredientDairy        IngredientType = "dairy"
	IngredientFat          IngredientType = "fat"
	IngredientSpice        IngredientType = "spice"
	IngredientCondiment    IngredientType = "condiment"
	IngredientGrain        IngredientType = "grain"
	IngredientLegume       IngredientType = "legume"
	IngredientLiquid       IngredientType = "liquid"
	IngredientOther        IngredientType = "other"
)

type StepType string

const (
	StepPreparation StepType = "preparation"
	StepCooking     StepType = "cooking"
	StepMixing      StepType = "mixing"
	StepSeasoning   StepType = "seasoning"
	StepAssembly    StepType = "assembly"
	StepServing     StepType = "serving"
	StepCleanup     StepType = "cleanup"
)

// CookingMethod names match the cooking_methods groups of the lexicon.
type CookingMethod string

const (
	CookingBoiling    CookingMethod = "boiling"
	CookingFrying     CookingMethod = "frying"
	CookingBaking     CookingMethod = "baking"
	CookingGrilling   CookingMethod = "grilling"
	CookingSteaming   CookingMethod = "steaming"
	CookingRoasting   CookingMethod = "roasting"
	CookingSauteing   CookingMethod = "sauteing"
	CookingBraising   CookingMethod = "braising"
	CookingStewing    CookingMethod = "stewing"
	CookingBlanching  CookingMethod = "blanching"
	CookingPoaching   CookingMethod = "poaching"
	CookingMarinating CookingMethod = "marinating"
	CookingNone       CookingMethod = "none"
)

// CookingMethods lists every method other than CookingNone.
func CookingMethods() []CookingMethod {
	return []CookingMethod{
		CookingBoiling, CookingFrying, CookingBaking, CookingGrilling,
		CookingSteaming, CookingRoasting, CookingSauteing, CookingBraising,
		CookingStewing, CookingBlanching, CookingPoaching, CookingMarinating,
	}
}

type PortionType string

const (
	PortionWeight      PortionType = "weight"
	PortionVolume      PortionType = "volume"
	PortionUnit        PortionType = "unit"
	PortionServing     PortionType = "serving"
	PortionDescriptive PortionType = "descriptive"
)

type NutrientSource string

const (
	SourceTextExtraction        NutrientSource = "text_extraction"
	SourceIngredientDatabase    NutrientSource = "ingredient_database"
	SourceIngredientCalculation NutrientSource = "ingredient_calculation"
	SourceTableColumn           NutrientSource = "table_column"
	SourceCatalog               NutrientSource = "catalog"
)

// Nutrient keys, in reporting order.
const (
	NutrientCalories = "calories"
	NutrientProtein  = "protein"
	NutrientCarbs    = "carbs"
	NutrientFat      = "fat"
	NutrientFiber    = "fiber"
	NutrientSugar    = "sugar"
	NutrientSodium   = "sodium"
	NutrientCalcium  = "calcium"
	NutrientIron     = "iron"
	NutrientVitaminC = "vitamin_c"
	NutrientVitaminA = "vitamin_a"
)

var Nutrients = []string{
	NutrientCalories, NutrientProtein, NutrientCarbs, NutrientFat, NutrientFiber, NutrientSugar,
	NutrientSodium, NutrientCalcium, NutrientIron, NutrientVitaminC, NutrientVitaminA,
}

type ValidationLevel string

const (
	LevelError   ValidationLevel = "error"
	LevelWarning ValidationLevel = "warning"
	LevelInfo    ValidationLevel = "info"
)

type NutritionalValue struct {
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Confidence float64        `json:"confidence"`
	Source     NutrientSource `json:"source"`
	PerUnit    string         `json:"per_unit,omitempty"`
}

// NutritionInfo is keyed by nutrient name.
type NutritionInfo map[string]NutritionalValue

type Ingredient struct {
	Name                string         `json:"name"`
	Quantity            *float64       `json:"quantity,omitempty"`
	Unit                *string        `json:"unit,omitempty"`
	IngredientType      IngredientType `json:"ingredient_type"`
	PreparationMethod   *string        `json:"preparation_method,omitempty"`
	Notes               []string       `json:"notes"`
	Alternatives        []string       `json:"alternatives"`
	IsOptional          bool           `json:"is_optional"`
	NutritionalCategory *string        `json:"nutritional_category,omitempty"`
	Confidence          float64        `json:"confidence"`
	OriginalText        string         `json:"original_text"`
}

type PreparationStep struct {
	StepNumber           int           `json:"step_number"`
	Instruction          string        `json:"instruction"`
	StepType             StepType      `json:"step_type"`
	CookingMethod        CookingMethod `json:"cooking_method"`
	EstimatedTime        *int          `json:"estimated_time,omitempty"`
	Temperature          *int          `json:"temperature,omitempty"`
	Equipment            []string      `json:"equipment"`
	Techniques           []string      `json:"techniques"`
	IngredientsMentioned []string      `json:"ingredients_mentioned"`
	SafetyNotes          []string      `json:"safety_notes"`
	Tips                 []string      `json:"tips"`
	OriginalText         string        `json:"original_text"`
	Confidence           float64       `json:"confidence"`
}

type Portion struct {
	Amount             *float64    `json:"amount,omitempty"`
	Unit               *string     `json:"unit,omitempty"`
	PortionType        PortionType `json:"portion_type"`
	Description        string      `json:"description"`
	GramsEquivalent    *float64    `json:"grams_equivalent,omitempty"`
	CaloriesPerPortion *float64    `json:"calories_per_portion,omitempty"`
	OriginalText       string      `json:"original_text"`
	Confidence         float64     `json:"confidence"`
}

type Classification struct {
	Category    string   `json:"category"`
	Subcategory *string  `json:"subcategory,omitempty"`
	Confidence  float64  `json:"confidence"`
	Reasoning   []string `json:"reasoning"`
	Tags        []string `json:"tags"`
}

type Variation struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ProcessingMetadata struct {
	ProcessedAt    string   `json:"processed_at"`
	ExtractorsUsed []string `json:"extractors_used"`
	Version        string   `json:"version"`
}

type ValidationResult struct {
	Level        ValidationLevel `json:"level"`
	Field        string          `json:"field"`
	Message      string          `json:"message"`
	SuggestedFix string          `json:"suggested_fix,omitempty"`
}

type Recipe struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Category            string              `json:"category"`
	Subcategory         string              `json:"subcategory"`
	FoodType            string              `json:"food_type"`
	MealTime            []string            `json:"meal_time"`
	SourceFile          string              `json:"source_file"`
	Ingredients         []Ingredient        `json:"ingredients"`
	IngredientsText     string              `json:"ingredients_text"`
	PreparationSteps    []PreparationStep   `json:"preparation_steps"`
	PreparationText     string              `json:"preparation_text"`
	Portions            []Portion           `json:"portions"`
	PortionSize         string              `json:"portion_size"`
	Servings            *int                `json:"servings,omitempty"`
	CookingTime         *int                `json:"cooking_time,omitempty"`
	PrepTime            *int                `json:"prep_time,omitempty"`
	TotalTime           *int                `json:"total_time,omitempty"`
	Difficulty          string              `json:"difficulty"`
	EconomicLevel       string              `json:"economic_level"`
	NutritionalInfo     NutritionInfo       `json:"nutritional_info"`
	Classification      *Classification     `json:"classification,omitempty"`
	DietaryRestrictions []string            `json:"dietary_restrictions"`
	Tags                []string            `json:"tags"`
	SuitableFor         []string            `json:"suitable_for"`
	Tips                []string            `json:"tips"`
	Variations          []Variation         `json:"variations"`
	EquipmentNeeded     []string            `json:"equipment_needed"`
	TechniquesUsed      []string            `json:"techniques_used"`
	ProcessingMetadata  *ProcessingMetadata `json:"processing_metadata,omitempty"`
	Validation          []ValidationResult  `json:"validation"`
}

type EquivalentFood struct {
	Food    string `json:"food"`
	Portion string `json:"portion"`
}

type Equivalency struct {
	ID                   string              `json:"id"`
	FoodName             string              `json:"food_name"`
	FoodGroup            string              `json:"food_group"`
	Portion              string              `json:"portion"`
	WeightGrams          *float64            `json:"weight_grams,omitempty"`
	NutritionalInfo      NutritionInfo       `json:"nutritional_info"`
	NutritionalDensity   map[string]float64  `json:"nutritional_density"`
	EquivalentFoods      []EquivalentFood    `json:"equivalent_foods"`
	ExchangeUnit         string              `json:"exchange_unit"`
	SubstitutionCategory string              `json:"substitution_category"`
	UsageNotes           []string            `json:"usage_notes"`
	ConversionFactors    map[string]float64  `json:"conversion_factors"`
	Portions             []Portion           `json:"portions"`
	Classification       *Classification     `json:"classification,omitempty"`
	SourceFile           string              `json:"source_file"`
	ProcessingMetadata   *ProcessingMetadata `json:"processing_metadata,omitempty"`
}

type ResultMetadata struct {
	ParserUsed         string `json:"parser_used,omitempty"`
	FileSize           int64  `json:"file_size"`
	ProcessedTimestamp string `json:"processed_timestamp"`
}

type ProcessingResult struct {
	FilePath         string           `json:"file_path"`
	FileType         DocumentKind     `json:"file_type"`
	Status           ProcessingStatus `json:"status"`
	RecordsProcessed int              `json:"records_processed"`
	Error            string           `json:"error,omitempty"`
	ProcessingTime   float64          `json:"processing_time"`
	Metadata         ResultMetadata   `json:"metadata"`

	Recipes       []Recipe      `json:"-"`
	Equivalencies []Equivalency `json:"-"`
}

type DocumentError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type Dataset struct {
	Recipes        []Recipe           `json:"recipes"`
	Equivalencies  []Equivalency      `json:"equivalencies"`
	ProcessedFiles []ProcessingResult `json:"processed_files"`
	Errors         []DocumentError    `json:"errors"`
}

type MatchStatus string

type MatchReason string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"

	ReasonName  MatchReason = "NAME"
	ReasonFuzzy MatchReason = "FUZZY"
	ReasonNone  MatchReason = "NONE"
)

// FoodRecord is a reference food from the external catalog, nutrients per 100 g.
type FoodRecord struct {
	ID        int
	SyncUID   *string
	Name      string
	FoodGroup *string
	Aliases   []string
	Per100g   map[string]float64
	UpdatedAt *string
	RawJSON   string
}

type MatchCandidate struct {
	ID      int     `json:"id"`
	SyncUID *string `json:"syncUid"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
}

type MatchResult struct {
	Status     MatchStatus      `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
	Food       *FoodRecord      `json:"food"`
	Candidates []MatchCandidate `json:"candidates"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
