package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type overlayFile struct {
	ExcludedDirectories     []string `yaml:"excluded_dirs"`
	ExcludedExtensions      []string `yaml:"excluded_extensions"`
	ExcludedFilenames       []string `yaml:"excluded_filenames"`
	ManifestFilenames       []string `yaml:"manifest_filenames"`
	ConfigDirectoryPrefixes []string `yaml:"config_dir_prefixes"`
	EntryPointFilenames     []string `yaml:"entry_points"`
	SourceExtensions        []string `yaml:"source_extensions"`
}

// ApplyOverlay reads a YAML overlay file and returns a rule set whose sets
// are extended with the overlay entries. The base rule set is not modified;
// built-in entries can be added to but never removed. An empty path returns
// the base rule set unchanged.
func ApplyOverlay(baseRuleSet RuleSet, overlayPath string) (RuleSet, error) {
	if overlayPath == "" {
		return baseRuleSet, nil
	}
	overlayData, readErr := os.ReadFile(overlayPath)
	if readErr != nil {
		return RuleSet{}, fmt.Errorf("read rules overlay %s: %w", overlayPath, readErr)
	}
	var overlay overlayFile
	if unmarshalErr := yaml.Unmarshal(overlayData, &overlay); unmarshalErr != nil {
		return RuleSet{}, fmt.Errorf("parse rules overlay %s: %w", overlayPath, unmarshalErr)
	}

	extendedRuleSet := RuleSet{
		ExcludedDirectories:     extendStringSet(baseRuleSet.ExcludedDirectories, overlay.ExcludedDirectories, nil),
		ExcludedExtensions:      extendStringSet(baseRuleSet.ExcludedExtensions, overlay.ExcludedExtensions, normalizeExtension),
		ExcludedFilenames:       extendStringSet(baseRuleSet.ExcludedFilenames, overlay.ExcludedFilenames, nil),
		ManifestFilenames:       extendStringSet(baseRuleSet.ManifestFilenames, overlay.ManifestFilenames, nil),
		ConfigDirectoryPrefixes: appendUnique(baseRuleSet.ConfigDirectoryPrefixes, overlay.ConfigDirectoryPrefixes),
		EntryPointFilenames:     extendStringSet(baseRuleSet.EntryPointFilenames, overlay.EntryPointFilenames, nil),
		SourceExtensions:        extendStringSet(baseRuleSet.SourceExtensions, overlay.SourceExtensions, normalizeExtension),
	}
	return extendedRuleSet, nil
}

func extendStringSet(baseSet map[string]struct{}, additions []string, normalize func(string) string) map[string]struct{} {
	extendedSet := make(map[string]struct{}, len(baseSet)+len(additions))
	for value := range baseSet {
		extendedSet[value] = struct{}{}
	}
	for _, value := range additions {
		if normalize != nil {
			value = normalize(value)
		}
		if value == "" {
			continue
		}
		extendedSet[value] = struct{}{}
	}
	return extendedSet
}

func appendUnique(baseValues []string, additions []string) []string {
	merged := make([]string, 0, len(baseValues)+len(additions))
	merged = append(merged, baseValues...)
	for _, value := range additions {
		if value == "" {
			continue
		}
		duplicate := false
		for _, existingValue := range merged {
			if existingValue == value {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, value)
		}
	}
	return merged
}

// normalizeExtension lowercases an extension entry and guarantees a leading
// dot so overlay files may write either "log" or ".log".
func normalizeExtension(extension string) string {
	extension = strings.ToLower(strings.TrimSpace(extension))
	if extension == "" {
		return ""
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return extension
}
